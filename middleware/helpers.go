package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/Dosada05/tournament-settlement/models"
	"github.com/golang-jwt/jwt/v4"
)

// Имена JWT claims
const (
	jwtClaimUserID = "user_id"
	jwtClaimRole   = "role"
)

var errNoClaims = errors.New("user claims not found in context")

// WithClaims returns ctx carrying claims as if Authenticate had run.
func WithClaims(ctx context.Context, userID int, role models.UserRole) context.Context {
	return context.WithValue(ctx, userContextKey, jwt.MapClaims{
		jwtClaimUserID: float64(userID),
		jwtClaimRole:   string(role),
	})
}

func claimsFrom(ctx context.Context) (jwt.MapClaims, error) {
	claims, ok := ctx.Value(userContextKey).(jwt.MapClaims)
	if !ok {
		return nil, errNoClaims
	}
	return claims, nil
}

// GetUserIDFromContext accepts the id as a JSON number or a numeric string.
func GetUserIDFromContext(ctx context.Context) (int, error) {
	claims, err := claimsFrom(ctx)
	if err != nil {
		return 0, err
	}

	var id int
	switch v := claims[jwtClaimUserID].(type) {
	case nil:
		return 0, fmt.Errorf("missing '%s' claim in token", jwtClaimUserID)
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("'%s' claim is not an integer: %f", jwtClaimUserID, v)
		}
		id = int(v)
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("'%s' claim is not an integer: %q", jwtClaimUserID, v)
		}
		id = n
	default:
		return 0, fmt.Errorf("invalid type for '%s' claim: %T", jwtClaimUserID, v)
	}
	if id <= 0 {
		return 0, fmt.Errorf("invalid user ID value in '%s' claim: %d", jwtClaimUserID, id)
	}
	return id, nil
}

func GetUserRoleFromContext(ctx context.Context) (models.UserRole, error) {
	claims, err := claimsFrom(ctx)
	if err != nil {
		return "", err
	}
	roleStr, ok := claims[jwtClaimRole].(string)
	if !ok {
		return "", fmt.Errorf("missing or invalid '%s' claim in token", jwtClaimRole)
	}
	switch role := models.UserRole(roleStr); role {
	case models.RoleAdmin, models.RoleOrganizer, models.RolePlayer:
		return role, nil
	}
	return "", fmt.Errorf("invalid role value in claim: %q", roleStr)
}
