package handlers

import (
	"github.com/spec-kit/fieldops-console/internal/api/dto"
	"github.com/spec-kit/fieldops-console/internal/domain"
)

func sessionToken(s *domain.Session) *dto.SessionToken {
	if s == nil {
		return nil
	}
	return &dto.SessionToken{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    s.AccessExpiresAt,
		PrincipalID:  s.AccountID,
	}
}

func staffResponse(s *domain.StaffAccount) dto.StaffResponse {
	return dto.StaffResponse{
		ID:              s.ID,
		TenantID:        s.TenantID,
		Name:            s.DisplayName,
		StaffCode:       s.StaffCode,
		Role:            string(s.Role),
		Active:          s.Active,
		Locked:          s.Locked,
		MustChangePIN:   s.MustChangePIN,
		LastPINChangeAt: s.LastPINChangeAt,
	}
}
