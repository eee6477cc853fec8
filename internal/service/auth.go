package service

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"
)

// AdminGateHeader carries the current TOTP code on integration requests.
const AdminGateHeader = "X-Admin-Gate"

// AdminGate guards the integration routes with a TOTP code. With no secret
// configured it lets every request through.
type AdminGate struct {
	logger     *zap.Logger
	totpSecret string
	issuer     string
}

func NewAdminGate(logger *zap.Logger, totpSecret, issuer string) *AdminGate {
	return &AdminGate{
		logger:     logger,
		totpSecret: strings.TrimSpace(totpSecret),
		issuer:     issuer,
	}
}

func (a *AdminGate) Enabled() bool {
	return a.totpSecret != ""
}

// GenerateSecret creates a new TOTP secret and its otpauth:// enrollment URL.
func (a *AdminGate) GenerateSecret(accountName string) (string, string, error) {
	if accountName == "" {
		accountName = "admin"
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      a.issuer,
		AccountName: accountName,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	return key.Secret(), key.URL(), nil
}

func (a *AdminGate) ValidateToken(token string) bool {
	valid := totp.Validate(strings.TrimSpace(token), a.totpSecret)
	if !valid {
		a.logger.Warn("Admin gate token validation failed")
	}
	return valid
}

// Middleware rejects requests without a valid code in AdminGateHeader.
func (a *AdminGate) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.Enabled() {
			c.Next()
			return
		}

		token := c.GetHeader(AdminGateHeader)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "message": "admin gate code required"})
			return
		}
		if !a.ValidateToken(token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "message": "invalid admin gate code"})
			return
		}

		c.Next()
	}
}
