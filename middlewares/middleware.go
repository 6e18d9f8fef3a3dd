package middlewares

import (
	"context"
	"net/http"
	"strings"

	"bitbucket.org/routeland/payments/config"
	"bitbucket.org/routeland/payments/helpers"
	"bitbucket.org/routeland/payments/models"
	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	jwtmiddleware "github.com/mfuentesg/go-jwtmiddleware"
	"github.com/mitchellh/mapstructure"
	log "github.com/sirupsen/logrus"

	"github.com/urfave/negroni"
)

func jwtErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	r := &ResponseWriter{Writer: w}
	if err.Error() == "Token is expired" {
		r.Error(http.StatusUnauthorized, "unauthorized", WithErrorScope("token"), WithErrorType(1))
		return
	}
	if err != nil {
		r.Error(http.StatusUnauthorized, "unauthorized", WithErrorScope("token"))
	}
}

func NewJWTMiddleware(secret []byte) *jwtmiddleware.Middleware {
	return jwtmiddleware.New(
		jwtmiddleware.WithErrorHandler(jwtErrorHandler),
		jwtmiddleware.WithSigningMethod(jwt.SigningMethodHS256),
		jwtmiddleware.WithSignKey(secret),
		jwtmiddleware.WithUserProperty("_jwt-token"),
	)
}

// LoggerRequest installs a per-request logger. Webhook deliveries reuse the
// provider's x-request-id; everything else gets a generated one.
func LoggerRequest(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	requestLogger := log.WithFields(log.Fields{"request_id": requestID, "query": r.URL.Query(), "host": r.Host, "url": r.URL.Path})
	requestLogger.Info("logger_request")
	next(rw, r.WithContext(config.WithLogger(r.Context(), requestLogger)))
}

func UserMiddleware() negroni.HandlerFunc {
	return negroni.HandlerFunc(func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		authorization := r.Header.Get("Authorization")
		if len(authorization) == 0 {
			authorization = r.URL.Query().Get("token")
			r.Header.Set("Authorization", authorization)
		}
		token := strings.Split(authorization, " ")
		if len(token) == 2 {
			tokenString := token[1]
			data, _ := helpers.ParserTokenUnverified(tokenString)
			tokenParse, ok := data["u"].(map[string]interface{})
			if ok {
				id := tokenParse["i"]
				roles := tokenParse["r"]
				read := tokenParse["read"]
				email := tokenParse["email"]
				dataInfo := models.InfoUser{}
				_data := map[string]interface{}{
					"ID":    id,
					"Roles": roles,
					"Read":  read,
				}
				mapstructure.Decode(_data, &dataInfo)
				isAdmin := helpers.Contains(dataInfo.Roles, 1)
				isClient := helpers.Contains(dataInfo.Roles, 4)
				isAPI := helpers.Contains(dataInfo.Roles, 5)
				data := map[string]interface{}{
					"Email":    email,
					"ID":       id,
					"IsAdmin":  isAdmin,
					"IsClient": isClient,
					"IsAPI":    isAPI,
					"Read":     dataInfo.Read,
					"Roles":    roles,
				}
				if r.Method != "GET" && dataInfo.Read {
					a := &ResponseWriter{Writer: rw}
					a.Error(http.StatusUnauthorized, "unauthorized", WithErrorScope("token"))
					return
				}
				if !isAdmin && !isClient && !isAPI && !dataInfo.Read {
					a := &ResponseWriter{Writer: rw}
					a.Error(http.StatusUnauthorized, "unauthorized", WithErrorScope("token"))
					return
				}
				ctx := context.WithValue(r.Context(), string("user"), data)
				next(rw, r.WithContext(ctx))
				return
			}
		}
		next(rw, r)
	})
}
