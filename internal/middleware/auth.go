// Package middleware provides gin middlewares shared by all routes.
package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-petr/carmarket-wallet/internal/domain"
	"github.com/go-petr/carmarket-wallet/pkg/tokenpkg"
	"github.com/go-petr/carmarket-wallet/pkg/web"
	"github.com/rs/zerolog"
)

// Keys and values of the authorization header.
const (
	AuthHeaderKey  = "authorization"
	AuthTypeBearer = "bearer"
	AuthPayloadKey = "authorization_payload"
)

var (
	// ErrAuthHeaderNotFound indicates a request without authorization header.
	ErrAuthHeaderNotFound = errors.New("authorization header is not provided")
	// ErrInvalidAuthHeader indicates an authorization header that is not "<type> <token>".
	ErrInvalidAuthHeader = errors.New("invalid authorization header format")
	// ErrUnsupportedAuthType indicates an authorization type other than bearer.
	ErrUnsupportedAuthType = errors.New("unsupported authorization type")
	// ErrForbiddenSubject indicates a token subject that may not call the route.
	ErrForbiddenSubject = errors.New("subject is not allowed to call this route")
)

// AddAuthorization sets a bearer token for subject on the request.
func AddAuthorization(r *http.Request, maker tokenpkg.Maker, authType, subject string, duration time.Duration) error {
	token, _, err := maker.CreateToken(subject, duration)
	if err != nil {
		return err
	}

	r.Header.Set(AuthHeaderKey, fmt.Sprintf("%s %s", authType, token))

	return nil
}

func unauthorized(gctx *gin.Context, err error) {
	zerolog.Ctx(gctx.Request.Context()).Info().Err(err).Send()
	gctx.AbortWithStatusJSON(http.StatusUnauthorized, web.Response{Error: web.Error(domain.KindUnauthorized, err)})
}

// AuthMiddleware verifies the bearer token and stores its payload under AuthPayloadKey.
func AuthMiddleware(maker tokenpkg.Maker) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		header := gctx.GetHeader(AuthHeaderKey)
		if len(header) == 0 {
			unauthorized(gctx, ErrAuthHeaderNotFound)
			return
		}

		fields := strings.Fields(header)
		if len(fields) < 2 {
			unauthorized(gctx, ErrInvalidAuthHeader)
			return
		}

		if strings.ToLower(fields[0]) != AuthTypeBearer {
			unauthorized(gctx, ErrUnsupportedAuthType)
			return
		}

		payload, err := maker.VerifyToken(fields[1])
		if err != nil {
			unauthorized(gctx, err)
			return
		}

		ctx := gctx.Request.Context()
		l := zerolog.Ctx(ctx).With().Str("subject", payload.Subject).Logger()
		gctx.Request = gctx.Request.WithContext(l.WithContext(ctx))

		gctx.Set(AuthPayloadKey, payload)
		gctx.Next()
	}
}

// RequireSubject lets through only tokens whose subject is in allowed.
//
// It must run after AuthMiddleware.
func RequireSubject(allowed []string) gin.HandlerFunc {
	set := make(map[string]bool, len(allowed))
	for _, s := range allowed {
		set[s] = true
	}

	return func(gctx *gin.Context) {
		if !set[Subject(gctx)] {
			zerolog.Ctx(gctx.Request.Context()).Warn().Msg("service route called by user token")
			gctx.AbortWithStatusJSON(http.StatusForbidden, web.Response{Error: web.Error(domain.KindUnauthorized, ErrForbiddenSubject)})

			return
		}

		gctx.Next()
	}
}

// Subject returns the subject of the verified token, empty when there is none.
func Subject(gctx *gin.Context) string {
	payload, ok := gctx.Get(AuthPayloadKey)
	if !ok {
		return ""
	}

	p, ok := payload.(*tokenpkg.Payload)
	if !ok {
		return ""
	}

	return p.Subject
}
