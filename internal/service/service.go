// Package service implements the ProvaLab API operations on top of the HTTP
// client: authentication, profile, exercises and attempts.
package service

import (
	"context"

	"github.com/LorenzoCecattoPaim/Math/internal/api/rest"
)

// Requester executes one API call.
type Requester interface {
	Do(ctx context.Context, req rest.Request, out any) error
}
