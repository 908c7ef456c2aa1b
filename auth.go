package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenTTL         = 7 * 24 * time.Hour
	minPasswordLen   = 4
	minUsernameLen   = 2
	maxUsernameLen   = 16
	loginRateWindow  = time.Minute
	maxLoginAttempts = 10
	secretSettingKey = "jwt_secret"
)

var (
	ErrMissingFields    = errors.New("all fields are required")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrSamePassword     = errors.New("new password cannot be the same as the old one")
	ErrUsernameTaken    = errors.New("username already in use")
	ErrBadCredentials   = errors.New("wrong username or password")
	ErrWrongPassword    = errors.New("wrong password")
	ErrRateLimited      = errors.New("too many login attempts, try again later")
)

// fieldError is a user-facing validation failure
type fieldError string

func (e fieldError) Error() string { return string(e) }

// bcryptCost is a var so tests can lower it
var bcryptCost = 12

// accountClaims is the JWT payload handed to browsers
type accountClaims struct {
	AccountID int64  `json:"aid"`
	Username  string `json:"usr"`
	jwt.RegisteredClaims
}

// Auth issues and checks account tokens
type Auth struct {
	db     *DB
	secret []byte

	attemptsMu sync.Mutex
	attempts   map[string]*loginWindow // by IP
}

type loginWindow struct {
	count   int
	resetAt time.Time
}

// NewAuth creates an Auth whose signing key survives restarts
func NewAuth(db *DB) *Auth {
	return &Auth{
		db:       db,
		secret:   signingSecret(db),
		attempts: make(map[string]*loginWindow),
	}
}

// signingSecret returns the HS256 key stored in settings, creating it on
// first start
func signingSecret(db *DB) []byte {
	if h := db.GetSetting(secretSettingKey); h != "" {
		if b, err := hex.DecodeString(h); err == nil && len(b) == 32 {
			return b
		}
		log.Printf("auth: stored secret is malformed, generating a new one")
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic("auth: generate secret: " + err.Error())
	}
	if err := db.SetSetting(secretSettingKey, hex.EncodeToString(secret)); err != nil {
		log.Printf("auth: could not persist secret, tokens will not survive a restart: %v", err)
	}
	return secret
}

func checkUsername(username string) error {
	if n := len(username); n < minUsernameLen || n > maxUsernameLen {
		return fieldError(fmt.Sprintf("username must be %d-%d characters", minUsernameLen, maxUsernameLen))
	}
	return nil
}

func checkNewPassword(pass, confirm string) error {
	if pass != confirm {
		return ErrPasswordMismatch
	}
	if len(pass) < minPasswordLen {
		return fieldError(fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}
	return nil
}

// Register creates an account and returns its id and a token
func (a *Auth) Register(username, pass, confirm string) (int64, string, error) {
	username = strings.TrimSpace(username)
	if username == "" || pass == "" || confirm == "" {
		return 0, "", ErrMissingFields
	}
	if err := checkUsername(username); err != nil {
		return 0, "", err
	}
	if err := checkNewPassword(pass, confirm); err != nil {
		return 0, "", err
	}

	taken, err := a.db.UsernameExists(username)
	if err != nil {
		return 0, "", fmt.Errorf("register %s: %w", username, err)
	}
	if taken {
		return 0, "", ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcryptCost)
	if err != nil {
		return 0, "", fmt.Errorf("register %s: hash: %w", username, err)
	}
	id, err := a.db.CreateAccount(username, string(hash))
	if err != nil {
		return 0, "", fmt.Errorf("register %s: %w", username, err)
	}
	token, err := a.issue(id, username)
	return id, token, err
}

// Login checks a password and returns the account id and a fresh token.
// Attempts are limited per IP.
func (a *Auth) Login(username, pass, ip string) (int64, string, error) {
	username = strings.TrimSpace(username)
	if username == "" || pass == "" {
		return 0, "", ErrMissingFields
	}
	if !a.allowAttempt(ip) {
		return 0, "", ErrRateLimited
	}

	acc, err := a.db.GetAccountByUsername(username)
	if err != nil {
		return 0, "", fmt.Errorf("login %s: %w", username, err)
	}
	if acc == nil || bcrypt.CompareHashAndPassword([]byte(acc.PassHash), []byte(pass)) != nil {
		return 0, "", ErrBadCredentials
	}
	token, err := a.issue(acc.ID, acc.Username)
	return acc.ID, token, err
}

// ChangePassword replaces an account's password. The old password must
// match and the new one must be confirmed and differ from it.
func (a *Auth) ChangePassword(accountID int64, oldPass, newPass, confirm string) error {
	if oldPass == "" || newPass == "" || confirm == "" {
		return ErrMissingFields
	}
	if err := checkNewPassword(newPass, confirm); err != nil {
		return err
	}
	if newPass == oldPass {
		return ErrSamePassword
	}

	acc, err := a.db.GetAccountByID(accountID)
	if err != nil {
		return fmt.Errorf("change password %d: %w", accountID, err)
	}
	if acc == nil || bcrypt.CompareHashAndPassword([]byte(acc.PassHash), []byte(oldPass)) != nil {
		return ErrWrongPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPass), bcryptCost)
	if err != nil {
		return fmt.Errorf("change password %d: hash: %w", accountID, err)
	}
	return a.db.UpdatePassword(accountID, string(hash))
}

// ValidateToken returns the account carried by a token signed with our key
func (a *Auth) ValidateToken(tokenStr string) (int64, string, error) {
	var claims accountClaims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return 0, "", err
	}
	if claims.AccountID <= 0 || claims.Username == "" {
		return 0, "", fmt.Errorf("token without account")
	}
	return claims.AccountID, claims.Username, nil
}

func (a *Auth) issue(accountID int64, username string) (string, error) {
	now := time.Now()
	claims := accountClaims{
		AccountID: accountID,
		Username:  username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// allowAttempt counts a login attempt for ip within the current window
func (a *Auth) allowAttempt(ip string) bool {
	a.attemptsMu.Lock()
	defer a.attemptsMu.Unlock()

	now := time.Now()
	w, ok := a.attempts[ip]
	if !ok || now.After(w.resetAt) {
		a.attempts[ip] = &loginWindow{count: 1, resetAt: now.Add(loginRateWindow)}
		return true
	}
	w.count++
	return w.count <= maxLoginAttempts
}
