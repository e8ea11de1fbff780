package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/openbrgy/portal/internal/config"
	"github.com/openbrgy/portal/internal/models"
	"github.com/openbrgy/portal/internal/types"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Claims is the JWT payload: registered claims plus the role at issue time.
// The role gate still reloads the user record, so a stale role claim cannot
// widen access.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// RegisterInput is the resident self-registration payload.
type RegisterInput struct {
	Username      string `json:"username"`
	Email         string `json:"email"`
	Password      string `json:"password"`
	BarangayID    string `json:"barangayId"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	ContactNumber string `json:"contactNumber"`
	Address       string `json:"address"`
}

// Register creates a resident account and returns it with a fresh token.
func Register(db *gorm.DB, cfg *config.Config, in RegisterInput) (*models.User, string, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" || in.Password == "" {
		return nil, "", types.ValidationError("username and password are required")
	}
	if len(in.Password) < 8 {
		return nil, "", types.ValidationError("password must be at least 8 characters")
	}

	if in.Email != "" {
		var count int64
		if err := db.Model(&models.User{}).Where("email = ?", in.Email).Count(&count).Error; err != nil {
			return nil, "", err
		}
		if count > 0 {
			return nil, "", types.ConflictError("email already taken")
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		Username:      in.Username,
		Email:         in.Email,
		PasswordHash:  string(hash),
		Role:          models.RoleResident,
		BarangayID:    in.BarangayID,
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		ContactNumber: in.ContactNumber,
		Address:       in.Address,
		Active:        true,
	}
	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, "", types.ConflictError("username already taken")
		}
		return nil, "", err
	}

	token, err := IssueToken(cfg, &user)
	if err != nil {
		return nil, "", err
	}
	return &user, token, nil
}

// Login validates credentials and issues a token. Unknown usernames and wrong
// passwords get the same response; inactive accounts and expired guests are
// rejected with a distinct message once the password checks out.
func Login(db *gorm.DB, cfg *config.Config, username, password string) (*models.User, string, error) {
	var user models.User
	err := db.Where("username = ?", strings.TrimSpace(username)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", types.AuthError("invalid username or password")
		}
		return nil, "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, "", types.AuthError("invalid username or password")
	}
	if !user.Active {
		return nil, "", types.AuthError("account is disabled")
	}
	if user.IsExpiredGuest(time.Now()) {
		return nil, "", types.AuthError("guest session expired")
	}

	token, err := IssueToken(cfg, &user)
	if err != nil {
		return nil, "", err
	}
	return &user, token, nil
}

// CreateGuest provisions a time-bounded guest identity from a name, contact
// and intent. No password: the returned token is the only credential, and it
// expires with the account.
func CreateGuest(db *gorm.DB, cfg *config.Config, name, contact, intent string) (*models.User, string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.TrimSpace(contact) == "" {
		return nil, "", types.ValidationError("name and contact are required")
	}

	expires := time.Now().Add(cfg.GuestTTL)
	user := models.User{
		Username:       "guest-" + uuid.NewString()[:8],
		Role:           models.RoleGuest,
		FirstName:      name,
		ContactNumber:  contact,
		Address:        intent,
		Active:         true,
		GuestExpiresAt: &expires,
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, "", err
	}

	token, err := IssueToken(cfg, &user)
	if err != nil {
		return nil, "", err
	}
	return &user, token, nil
}

// IssueToken signs an HS256 JWT for the user. Guest tokens never outlive the
// guest account.
func IssueToken(cfg *config.Config, user *models.User) (string, error) {
	now := time.Now().UTC()
	expiry := now.Add(cfg.JWTTTL)
	if user.GuestExpiresAt != nil && user.GuestExpiresAt.Before(expiry) {
		expiry = user.GuestExpiresAt.UTC()
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiry),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		Role: user.Role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

// ParseToken validates a bearer token and returns its claims.
func ParseToken(cfg *config.Config, tokenString string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil || !parsed.Valid {
		return nil, types.AuthError("invalid or expired token")
	}
	if claims.Subject == "" {
		return nil, types.AuthError("token subject missing")
	}
	return claims, nil
}

// GetActiveUser resolves a token subject to a usable account. Expired guests
// are reported as unauthorized, not found.
func GetActiveUser(db *gorm.DB, id string) (*models.User, error) {
	var user models.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.AuthError("account not found")
		}
		return nil, err
	}
	if !user.Active {
		return nil, types.AuthError("account is disabled")
	}
	if user.IsExpiredGuest(time.Now()) {
		return nil, types.AuthError("guest session expired")
	}
	return &user, nil
}
