package querier

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/flight"
	flightgen "github.com/apache/arrow/go/v14/arrow/flight/gen/flight"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"

	"github.com/gigapi/gigapi-lakehouse/core"
)

// SQLQuerier runs raw SQL.
type SQLQuerier interface {
	Query(ctx context.Context, sql string) (*core.Result, error)
}

// ticketTTL bounds how long an unfetched result is kept.
const ticketTTL = 5 * time.Minute

type pendingResult struct {
	record  arrow.Record
	created time.Time
}

// FlightSQLServer serves statement queries over Arrow Flight.
type FlightSQLServer struct {
	flightgen.UnimplementedFlightServiceServer
	querier SQLQuerier
	mem     memory.Allocator

	resultsLock sync.Mutex
	results     map[string]pendingResult
}

// NewFlightSQLServer creates a new FlightSQL server instance
func NewFlightSQLServer(querier SQLQuerier) *FlightSQLServer {
	return &FlightSQLServer{
		querier: querier,
		mem:     memory.DefaultAllocator,
		results: make(map[string]pendingResult),
	}
}

// Handshake echoes every request payload back.
func (s *FlightSQLServer) Handshake(stream flight.FlightService_HandshakeServer) error {
	for {
		req, err := stream.Recv()
		if err != nil {
			return err
		}
		if err := stream.Send(&flight.HandshakeResponse{Payload: req.Payload}); err != nil {
			return err
		}
	}
}

func (s *FlightSQLServer) ListActions(_ *flight.Empty, _ flight.FlightService_ListActionsServer) error {
	return nil
}

// GetFlightInfo executes a CommandStatementQuery and parks the result until DoGet.
func (s *FlightSQLServer) GetFlightInfo(ctx context.Context, desc *flight.FlightDescriptor) (*flight.FlightInfo, error) {
	ctx = core.WithDefaultLogger(ctx, "flight-"+uuid.NewString()[:8])
	if desc.Type != flight.DescriptorCMD {
		return nil, status.Errorf(codes.InvalidArgument, "unsupported flight descriptor type: %v", desc.Type)
	}
	query, err := decodeStatementQuery(desc.Cmd)
	if err != nil {
		return nil, err
	}
	core.Infof(ctx, "Executing SQL query: %v", query)

	res, err := s.querier.Query(ctx, query)
	if err != nil {
		core.Errorf(ctx, "Query execution failed: %v", err)
		return nil, status.Error(grpcCode(err), err.Error())
	}

	rec, err := ToArrow(res, s.mem)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to convert results to Arrow format: %v", err)
	}

	ticketID := uuid.NewString()
	s.resultsLock.Lock()
	s.evictExpiredLocked(time.Now())
	s.results[ticketID] = pendingResult{record: rec, created: time.Now()}
	s.resultsLock.Unlock()

	info := &flight.FlightInfo{
		FlightDescriptor: desc,
		Endpoint: []*flight.FlightEndpoint{{
			Ticket: &flight.Ticket{Ticket: []byte(ticketID)},
		}},
		TotalRecords: rec.NumRows(),
		TotalBytes:   -1,
		Schema:       flight.SerializeSchema(rec.Schema(), s.mem),
	}
	core.Infof(ctx, "Returning flight info with %d records", rec.NumRows())
	return info, nil
}

// DoGet streams a parked result once, then forgets it.
func (s *FlightSQLServer) DoGet(ticket *flight.Ticket, stream flight.FlightService_DoGetServer) error {
	id := string(ticket.Ticket)
	s.resultsLock.Lock()
	pending, exists := s.results[id]
	delete(s.results, id)
	s.resultsLock.Unlock()

	if !exists {
		return status.Errorf(codes.NotFound, "no results found for ticket: %s", id)
	}
	defer pending.record.Release()

	writer := flight.NewRecordWriter(stream, ipc.WithSchema(pending.record.Schema()))
	if err := writer.Write(pending.record); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write record batch: %w", err)
	}
	return writer.Close()
}

func (s *FlightSQLServer) DoPut(_ flight.FlightService_DoPutServer) error {
	return status.Error(codes.Unimplemented, "put not supported")
}

// Close releases every parked result.
func (s *FlightSQLServer) Close() {
	s.resultsLock.Lock()
	defer s.resultsLock.Unlock()
	for id, p := range s.results {
		p.record.Release()
		delete(s.results, id)
	}
}

func (s *FlightSQLServer) evictExpiredLocked(now time.Time) {
	for id, p := range s.results {
		if now.Sub(p.created) > ticketTTL {
			p.record.Release()
			delete(s.results, id)
		}
	}
}

func decodeStatementQuery(cmd []byte) (string, error) {
	var wrapped anypb.Any
	if err := proto.Unmarshal(cmd, &wrapped); err != nil {
		return "", status.Errorf(codes.InvalidArgument, "failed to unmarshal command: %v", err)
	}
	var stmt flightgen.CommandStatementQuery
	if err := wrapped.UnmarshalTo(&stmt); err != nil {
		return "", status.Errorf(codes.InvalidArgument, "unsupported command %s", wrapped.GetTypeUrl())
	}
	if stmt.GetQuery() == "" {
		return "", status.Error(codes.InvalidArgument, "empty query")
	}
	return stmt.GetQuery(), nil
}

func grpcCode(err error) codes.Code {
	switch core.ErrorKind(err) {
	case "validation", "query_execution":
		return codes.InvalidArgument
	case "unknown_table":
		return codes.NotFound
	case "timeout":
		return codes.DeadlineExceeded
	case "connection":
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// NewFlightGRPCServer registers server on a fresh gRPC server.
func NewFlightGRPCServer(server *FlightSQLServer) *grpc.Server {
	s := grpc.NewServer()
	flightgen.RegisterFlightServiceServer(s, server)
	reflection.Register(s)
	return s
}

// StartFlightSQLServer serves Flight SQL on port until ctx is cancelled.
func StartFlightSQLServer(ctx context.Context, port int, querier SQLQuerier) error {
	server := NewFlightSQLServer(querier)
	defer server.Close()
	s := NewFlightGRPCServer(server)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()

	core.Infof(ctx, "FlightSQL server listening on port %d", port)
	return s.Serve(lis)
}
