package email

import (
	"context"
)

// Service sends transactional mail. Verify checks connectivity and
// authentication against the SMTP server without sending anything.
type Service interface {
	SendCustom(ctx context.Context, to string, subject string, content string) error
	Verify(ctx context.Context) error
}
