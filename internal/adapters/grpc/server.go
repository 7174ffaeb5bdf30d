package grpc

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/viralforge/mesh/services/financial-rails/M43-referral-commission-service/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M43-referral-commission-service/internal/domain"
)

type ReferralInternalService interface {
	GetUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetEarningsSummary(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ReferralInternalServer exposes referral lookups to sibling services over
// gRPC, alongside the standard health service registered by bootstrap.
type ReferralInternalServer struct {
	service *application.Service
}

func NewReferralInternalServer(service *application.Service) *ReferralInternalServer {
	return &ReferralInternalServer{service: service}
}

func Register(server grpc.ServiceRegistrar, svc ReferralInternalService) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: "viralforge.referral.v1.ReferralInternalService",
		HandlerType: (*ReferralInternalService)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "GetUser",
				Handler:    getUserHandler(svc),
			},
			{
				MethodName: "GetEarningsSummary",
				Handler:    getEarningsSummaryHandler(svc),
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "mesh/contracts/proto/referral/v1/referral_internal.proto",
	}, svc)
}

func (s *ReferralInternalServer) GetUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromRequest(req)
	if err != nil {
		return nil, err
	}

	user, err := s.service.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, status.Error(codes.NotFound, "user not found")
		}
		return nil, status.Errorf(codes.Internal, "get user: %v", err)
	}

	fields := map[string]any{
		"user_id":          user.ID.String(),
		"name":             user.Name,
		"is_kol":           user.IsKOL,
		"has_waived_fees":  user.HasWaivedFees,
		"referral_count":   user.Count.Referrals,
		"commission_count": user.Count.Commissions,
	}
	if user.ReferralCode != nil {
		fields["referral_code"] = *user.ReferralCode
	}
	if user.ReferrerID != nil {
		fields["referrer_id"] = user.ReferrerID.String()
	}
	resp, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func (s *ReferralInternalServer) GetEarningsSummary(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromRequest(req)
	if err != nil {
		return nil, err
	}

	earnings, err := s.service.Earnings(ctx, userID, nil, nil)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, status.Error(codes.NotFound, "user not found")
		}
		return nil, status.Errorf(codes.Internal, "load earnings: %v", err)
	}

	resp, err := structpb.NewStruct(map[string]any{
		"user_id":              userID.String(),
		"total_earnings":       earnings.Summary.TotalEarnings,
		"total_claimed":        earnings.Summary.TotalClaimed,
		"total_unclaimed":      earnings.Summary.TotalUnclaimed,
		"cashback_total":       earnings.Summary.Cashback.Total,
		"combined_total":       earnings.Summary.CombinedTotal,
		"total_referred_users": earnings.Summary.TotalReferredUsers,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func userIDFromRequest(req *structpb.Struct) (uuid.UUID, error) {
	raw := req.GetFields()["user_id"]
	if raw == nil || raw.GetStringValue() == "" {
		return uuid.Nil, status.Error(codes.InvalidArgument, "missing user_id")
	}
	userID, err := uuid.Parse(raw.GetStringValue())
	if err != nil {
		return uuid.Nil, status.Error(codes.InvalidArgument, "invalid user_id")
	}
	return userID, nil
}

func getUserHandler(svc ReferralInternalService) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return svc.GetUser(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/viralforge.referral.v1.ReferralInternalService/GetUser",
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return svc.GetUser(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}

func getEarningsSummaryHandler(svc ReferralInternalService) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return svc.GetEarningsSummary(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/viralforge.referral.v1.ReferralInternalService/GetEarningsSummary",
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return svc.GetEarningsSummary(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}
