package models

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// MagicLinkTTL bounds how long a login link stays usable.
const MagicLinkTTL = 15 * time.Minute

type User struct {
	ID                   uint           `gorm:"primaryKey" json:"id"`
	FirstName            string         `gorm:"type:varchar(100);not null" json:"first_name" validate:"required,max=100"`
	LastName             string         `gorm:"type:varchar(100);not null" json:"last_name" validate:"required,max=100"`
	Email                string         `gorm:"uniqueIndex;type:varchar(200);not null" json:"email" validate:"required,email,min=5,max=200"`
	Password             string         `gorm:"type:text" json:"-" validate:"required,min=8"`
	StripeCustomerID     string         `gorm:"type:varchar(191);default:'';index" json:"-"`
	OTPSecret            string         `gorm:"type:varchar(100);default:''" json:"-"`
	OTPEnabled           bool           `gorm:"default:false" json:"otp_enabled"`
	LoginTokenDigest     string         `gorm:"type:varchar(100);default:'';index" json:"-"`
	LoginTokenValidUntil *time.Time     `gorm:"type:timestamp;default:null" json:"-"`
	LastLoginAt          *time.Time     `gorm:"type:timestamp;default:null" json:"last_login_at"`
	CreatedAt            time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"-"`

	Memberships []Membership `gorm:"foreignKey:UserID" json:"memberships,omitempty"`
}

func (u *User) Validate() error {
	v := validator.New()
	return v.Struct(u)
}

// NormalizeEmail lowercases and trims before persistence. Email uniqueness is
// case-insensitive, enforced by always storing the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser builds a validated user with a hashed password.
func CreateUser(firstName, lastName, email, password string) (*User, error) {
	pw, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &User{
		FirstName: firstName,
		LastName:  lastName,
		Email:     NormalizeEmail(email),
		Password:  pw,
	}

	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash compares the given password with the stored hash.
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (u *User) Name() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) Initials() string {
	initials := ""
	if u.FirstName != "" {
		initials += strings.ToUpper(u.FirstName[:1])
	}
	if u.LastName != "" {
		initials += strings.ToUpper(u.LastName[:1])
	}
	return initials
}

// CheckPassword verifies if the provided password matches the stored hash.
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.Password)
}

// SetPassword hashes and sets a new password for the user.
func (u *User) SetPassword(password string) error {
	hashed, err := HashPassword(password)
	if err != nil {
		return err
	}
	u.Password = hashed
	return nil
}

// GenerateMagicLinkToken creates a random login token, stores its SHA-256
// digest plus expiry on the user, and returns the plaintext token. The
// plaintext is only available once.
func (u *User) GenerateMagicLinkToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(b)
	u.LoginTokenDigest = HashMagicLinkToken(token)
	validUntil := time.Now().Add(MagicLinkTTL)
	u.LoginTokenValidUntil = &validUntil
	return token, nil
}

// HashMagicLinkToken digests a plaintext magic-link token for storage/lookup.
func HashMagicLinkToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ValidMagicLinkToken checks digest equality in constant time and enforces
// the expiry window.
func (u *User) ValidMagicLinkToken(token string) bool {
	if u.LoginTokenDigest == "" || u.LoginTokenValidUntil == nil {
		return false
	}
	if time.Now().After(*u.LoginTokenValidUntil) {
		return false
	}
	digest := HashMagicLinkToken(token)
	return subtle.ConstantTimeCompare([]byte(u.LoginTokenDigest), []byte(digest)) == 1
}

// ClearMagicLinkToken invalidates any outstanding login link.
func (u *User) ClearMagicLinkToken() {
	u.LoginTokenDigest = ""
	u.LoginTokenValidUntil = nil
}
