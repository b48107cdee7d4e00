package api

import (
	"context"
	"errors"
	"fmt"
	"math"

	"hotelbook/internal/domain"
	"hotelbook/internal/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	bookingServiceName = "hotelbook.booking.v1.BookingService"
	methodRoomsLeft    = "/" + bookingServiceName + "/RoomsLeft"
	methodAdmitBooking = "/" + bookingServiceName + "/AdmitBooking"
)

// BookingServiceServer is the gRPC surface of the booking core. Messages are
// google.protobuf.Struct documents:
//
//	RoomsLeft    {room_id, date_from, date_to} -> {room_id, date_from, date_to, rooms_left}
//	AdmitBooking {user_id, room_id, date_from, date_to} -> {outcome, booking?}
type BookingServiceServer interface {
	RoomsLeft(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	AdmitBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var bookingServiceDesc = grpc.ServiceDesc{
	ServiceName: bookingServiceName,
	HandlerType: (*BookingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RoomsLeft", Handler: roomsLeftHandler},
		{MethodName: "AdmitBooking", Handler: admitBookingHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "hotelbook/booking/v1/booking.proto",
}

func RegisterBookingServiceServer(s grpc.ServiceRegistrar, srv BookingServiceServer) {
	s.RegisterService(&bookingServiceDesc, srv)
}

func roomsLeftHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BookingServiceServer).RoomsLeft(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodRoomsLeft}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BookingServiceServer).RoomsLeft(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func admitBookingHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BookingServiceServer).AdmitBooking(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodAdmitBooking}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BookingServiceServer).AdmitBooking(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// BookingClient calls BookingService over a client connection.
type BookingClient struct {
	cc grpc.ClientConnInterface
}

func NewBookingClient(cc grpc.ClientConnInterface) *BookingClient {
	return &BookingClient{cc: cc}
}

func (c *BookingClient) RoomsLeft(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodRoomsLeft, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingClient) AdmitBooking(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodAdmitBooking, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// BookingGRPCService adapts domain.BookingService to BookingServiceServer.
type BookingGRPCService struct {
	bookings domain.BookingService
}

func NewBookingGRPCService(bookings domain.BookingService) *BookingGRPCService {
	return &BookingGRPCService{bookings: bookings}
}

func (s *BookingGRPCService) RoomsLeft(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	roomID, err := structID(req, "room_id")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	stay, err := structStay(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if !stay.From.Before(stay.To) {
		return nil, status.Error(codes.InvalidArgument, models.ErrInvalidDateRange.Error())
	}

	left, err := s.bookings.RoomsLeft(ctx, roomID, stay)
	if err != nil {
		return nil, grpcError(err)
	}

	return structpb.NewStruct(map[string]any{
		"room_id":    roomID,
		"date_from":  stay.From.Format(models.DateLayout),
		"date_to":    stay.To.Format(models.DateLayout),
		"rooms_left": left,
	})
}

func (s *BookingGRPCService) AdmitBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := structID(req, "user_id")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	roomID, err := structID(req, "room_id")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	stay, err := structStay(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.bookings.ValidateStay(stay); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	result := s.bookings.AdmitBooking(ctx, models.BookingRequest{UserID: userID, RoomID: roomID, Stay: stay})
	switch result.Outcome {
	case models.OutcomeAdmitted:
		b := result.Booking
		return structpb.NewStruct(map[string]any{
			"outcome": result.Outcome.String(),
			"booking": map[string]any{
				"id":         b.ID,
				"room_id":    b.RoomID,
				"user_id":    b.UserID,
				"date_from":  b.DateFrom.Format(models.DateLayout),
				"date_to":    b.DateTo.Format(models.DateLayout),
				"price":      b.Price,
				"total_days": b.TotalDays(),
				"total_cost": b.TotalCost(),
			},
		})
	case models.OutcomeFullyBooked:
		return structpb.NewStruct(map[string]any{"outcome": result.Outcome.String()})
	default:
		if errors.Is(result.Err, models.ErrRoomNotFound) {
			return nil, status.Error(codes.NotFound, models.ErrRoomNotFound.Error())
		}
		return nil, status.Error(codes.Internal, "cannot add booking")
	}
}

func structID(req *structpb.Struct, field string) (int64, error) {
	v, ok := req.GetFields()[field]
	if !ok {
		return 0, fmt.Errorf("%s is required", field)
	}
	n := v.GetNumberValue()
	if _, isNum := v.GetKind().(*structpb.Value_NumberValue); !isNum || n <= 0 || n != math.Trunc(n) || n >= math.MaxInt64 {
		return 0, fmt.Errorf("%s must be a positive integer", field)
	}
	return int64(n), nil
}

func structStay(req *structpb.Struct) (models.Stay, error) {
	fields := req.GetFields()
	return models.ParseStay(fields["date_from"].GetStringValue(), fields["date_to"].GetStringValue())
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, models.ErrRoomNotFound), errors.Is(err, models.ErrHotelNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, models.ErrInvalidDateRange), errors.Is(err, models.ErrStayTooLong):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
