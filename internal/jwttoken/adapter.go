package jwttoken

import (
	mwauth "veristat/pkg/platform/middleware/auth"
)

// MiddlewareAdapter adapts the Validator to the auth middleware's interface.
type MiddlewareAdapter struct {
	validator *Validator
}

// NewMiddlewareAdapter wraps a Validator for use with auth.RequireAuth.
func NewMiddlewareAdapter(v *Validator) *MiddlewareAdapter {
	return &MiddlewareAdapter{validator: v}
}

func (a *MiddlewareAdapter) ValidateToken(tokenString string) (*mwauth.Claims, error) {
	claims, err := a.validator.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &mwauth.Claims{
		UserID: claims.UserID,
		Role:   claims.Role,
	}, nil
}
