package auth

import (
	"errors"
	"sync"
	"video-uploader/entities"
	"video-uploader/pkg/notify"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims carries the identity of the signed-in user; the subject is the uid.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Session holds the current user for this process and signals every
// sign-in or sign-out to its subscribers.
type Session struct {
	secret   []byte
	issuer   string
	mu       sync.RWMutex
	user     *entities.User
	notifier *notify.Notifier
}

func NewSession(secret, issuer string) *Session {
	return &Session{
		secret:   []byte(secret),
		issuer:   issuer,
		notifier: notify.New(),
	}
}

// SignIn validates token and makes its subject the current user.
func (s *Session) SignIn(token string) (entities.User, error) {
	claims, err := s.validate(token)
	if err != nil {
		return entities.User{}, err
	}
	user := entities.User{UID: claims.Subject, Email: claims.Email}

	s.mu.Lock()
	s.user = &user
	s.mu.Unlock()

	s.notifier.Notify()
	return user, nil
}

func (s *Session) SignOut() {
	s.mu.Lock()
	wasSignedIn := s.user != nil
	s.user = nil
	s.mu.Unlock()

	if wasSignedIn {
		s.notifier.Notify()
	}
}

func (s *Session) CurrentUser() (entities.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return entities.User{}, false
	}
	return *s.user, true
}

func (s *Session) Subscribe() (<-chan struct{}, func()) {
	return s.notifier.Subscribe()
}

func (s *Session) validate(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
