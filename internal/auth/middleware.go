package auth

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"go.uber.org/zap"
)

const principalKey = "webhook_principal"

// WebhookCredentials guards the ticket webhook with one shared basic-auth
// credential. Only a bcrypt hash of the password is held in memory.
type WebhookCredentials struct {
	username string
	hash     string
	logger   *zap.Logger
}

// NewWebhookCredentials hashes password with cost.
func NewWebhookCredentials(username, password string, cost int, logger *zap.Logger) (*WebhookCredentials, error) {
	hash, err := HashPassword(password, cost)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookCredentials{username: username, hash: hash, logger: logger}, nil
}

// Authorize reports whether the presented credential matches.
func (w *WebhookCredentials) Authorize(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(w.username)) == 1
	passOK := ComparePassword(w.hash, password) == nil
	return userOK && passOK
}

// Handle returns the fiber middleware enforcing the credential.
func (w *WebhookCredentials) Handle() fiber.Handler {
	return basicauth.New(basicauth.Config{
		Realm:           "ticket-webhook",
		Authorizer:      w.Authorize,
		Unauthorized:    w.unauthorized,
		ContextUsername: principalKey,
	})
}

func (w *WebhookCredentials) unauthorized(c *fiber.Ctx) error {
	w.logger.Warn("webhook credential rejected",
		zap.String("ip", c.IP()),
		zap.String("path", c.Path()))
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"status": "unauthorized"})
}

// PrincipalFromContext returns the authenticated webhook username.
func PrincipalFromContext(c *fiber.Ctx) (string, bool) {
	username, ok := c.Locals(principalKey).(string)
	return username, ok && username != ""
}
