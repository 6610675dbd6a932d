package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Operation tags what an action token is allowed to do.
type Operation string

const (
	OperationConfirm       Operation = "confirm"
	OperationResetPassword Operation = "reset-password"
	OperationChangeEmail   Operation = "change-email"
)

// ErrInvalidActionToken 令牌签名错误、过期或格式错误，对外不区分。
var ErrInvalidActionToken = errors.New("invalid action token")

// ActionPayload carries operation specific data inside the token.
type ActionPayload struct {
	NewEmail string
}

// ActionClaims is the signed body of an action token.
type ActionClaims struct {
	UserID    uint      `json:"uid"`
	Operation Operation `json:"op"`
	NewEmail  string    `json:"new_email,omitempty"`
	jwt.RegisteredClaims
}

// ActionTokenTTL holds the default lifetime per operation.
type ActionTokenTTL struct {
	Confirm       time.Duration
	ResetPassword time.Duration
	ChangeEmail   time.Duration
}

func (t ActionTokenTTL) forOperation(op Operation) time.Duration {
	var ttl time.Duration
	switch op {
	case OperationConfirm:
		ttl = t.Confirm
	case OperationResetPassword:
		ttl = t.ResetPassword
	case OperationChangeEmail:
		ttl = t.ChangeEmail
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return ttl
}

// ActionTokenCodec signs and verifies out-of-band action tokens.
// Tokens are compact JWTs, which are URL safe.
type ActionTokenCodec struct {
	secret []byte
	issuer string
	ttl    ActionTokenTTL
	now    func() time.Time
}

// NewActionTokenCodec creates a codec. A nil clock means time.Now.
func NewActionTokenCodec(secret []byte, issuer string, ttl ActionTokenTTL, clock func() time.Time) (*ActionTokenCodec, error) {
	if len(secret) == 0 {
		return nil, errors.New("action token secret must not be empty")
	}
	if clock == nil {
		clock = time.Now
	}
	if strings.TrimSpace(issuer) == "" {
		issuer = "snapgraph-actions"
	}
	return &ActionTokenCodec{secret: secret, issuer: issuer, ttl: ttl, now: clock}, nil
}

// ResolveSecret returns the configured secret, or 32 random bytes when none
// is configured. The generated key lives only as long as the process.
func ResolveSecret(configured string) ([]byte, bool, error) {
	if trimmed := strings.TrimSpace(configured); trimmed != "" {
		return []byte(trimmed), false, nil
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, false, fmt.Errorf("generate action token secret: %w", err)
	}
	return buf, true, nil
}

// Encode signs a token using the default TTL of op.
func (c *ActionTokenCodec) Encode(userID uint, op Operation, payload ActionPayload) (string, time.Time, error) {
	return c.EncodeWithTTL(userID, op, payload, c.ttl.forOperation(op))
}

// EncodeWithTTL signs a token expiring ttl from now. A zero ttl yields a
// token that is valid only until the clock moves past the current instant.
func (c *ActionTokenCodec) EncodeWithTTL(userID uint, op Operation, payload ActionPayload, ttl time.Duration) (string, time.Time, error) {
	if c == nil {
		return "", time.Time{}, errors.New("action token codec is nil")
	}
	if userID == 0 {
		return "", time.Time{}, errors.New("invalid user for action token")
	}
	if ttl < 0 {
		ttl = 0
	}
	// NumericDate 精度为秒
	now := c.now().UTC().Truncate(time.Second)
	expiry := now.Add(ttl)

	claims := ActionClaims{
		UserID:    userID,
		Operation: op,
		NewEmail:  strings.TrimSpace(payload.NewEmail),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiry, nil
}

// Decode verifies signature and expiry. Every failure wraps
// ErrInvalidActionToken; the second wrapped error carries the private reason.
func (c *ActionTokenCodec) Decode(token string) (*ActionClaims, error) {
	if c == nil {
		return nil, errors.New("action token codec is nil")
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		// exp 在下面按注入的时钟判断，允许 now == exp
		jwt.WithoutClaimsValidation(),
	)

	claims := &ActionClaims{}
	parsed, err := parser.ParseWithClaims(strings.TrimSpace(token), claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidActionToken, err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("%w: %w", ErrInvalidActionToken, jwt.ErrTokenUnverifiable)
	}
	if claims.Issuer != c.issuer {
		return nil, fmt.Errorf("%w: %w", ErrInvalidActionToken, jwt.ErrTokenInvalidIssuer)
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidActionToken, jwt.ErrTokenRequiredClaimMissing)
	}
	if c.now().Truncate(time.Second).After(claims.ExpiresAt.Time) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidActionToken, jwt.ErrTokenExpired)
	}
	if claims.UserID == 0 || claims.Operation == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidActionToken, jwt.ErrTokenMalformed)
	}
	return claims, nil
}

// FailureReason classifies a Decode error for private diagnostics only.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "bad_signature"
	default:
		return "malformed"
	}
}

// SignatureKey returns the hex SHA-256 of the token's signature segment,
// used as the denylist key.
func SignatureKey(token string) string {
	token = strings.TrimSpace(token)
	if idx := strings.LastIndex(token, "."); idx >= 0 {
		token = token[idx+1:]
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
