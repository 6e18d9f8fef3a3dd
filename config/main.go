package config

import (
	"context"
	"fmt"
	"strconv"
	"time"

	db "bitbucket.org/routeland/payments/db"
	mercadopago "bitbucket.org/routeland/payments/mercadopago"
	"bitbucket.org/routeland/payments/reconcile"
	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

type Configuration struct {
	JWTSecret      string `env:"JWT_SECRET,required"`
	Port           int    `env:"PORT,default=3001"`
	Timeout        int    `env:"TIMEOUT,default=15"`
	BackendBaseURL string `env:"BACKEND_BASE_URL,default=http://localhost:3001"`
	DB             db.Storage
	SQL            database
	SMTP           smtp
	MercadoPago    mercadopagoConf
	Mail           mail
	Environment    string `env:"ENVIRONMENT,default=development"`
	AppName        string `env:"APP_NAME,default=payments"`
}

type database struct {
	URL            string `env:"DATA_BASE_URL,required"`
	Name           string `env:"DATA_BASE_NAME,required"`
	User           string `env:"DATA_BASE_USER,required"`
	Port           int    `env:"DATA_BASE_PORT,default=3306"`
	Password       string `env:"DATA_BASE_PASSWORD,required"`
	OpenConnection int    `env:"DATA_BASE_MAX_OPEN_CONNECTION,default=5"`
}

type smtp struct {
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT,default=587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
}

type mercadopagoConf struct {
	BaseURL          string `env:"MERCADOPAGO_BASEURL,default=https://api.mercadopago.com"`
	MerchantOrderURL string `env:"MERCADOPAGO_MERCHANT_ORDERS_URL,default=https://api.mercadolibre.com"`
	Token            string `env:"MERCADOPAGO_TOKEN"`
	WebhookSecret    string `env:"MERCADOPAGO_WEBHOOK_SECRET"`
	NotificationPath string `env:"MERCADOPAGO_NOTIFICATION_PATH,default=/webhook/mercadopago"`
	Timeout          int    `env:"MERCADOPAGO_TIMEOUT,default=5"`
}

type mail struct {
	PaymentSuccess mailPaymentSuccess
	NameFrom       string `env:"MAIL_NAME_FROM"`
	EmailFrom      string `env:"MAIL_EMAIL_FROM"`
	NotifyName     string `env:"MAIL_NOTIFY_NAME"`
	NotifyEmail    string `env:"MAIL_NOTIFY_EMAIL"`
	Folder         string `env:"MAIL_FOLDER"`
	Path           string `env:"MAIL_PATH"`
}

type mailPaymentSuccess struct {
	Subject  string `env:"MAIL_PAYMENT_SUCCESS_SUBJECT"`
	Template string `env:"MAIL_PAYMENT_SUCCESS_TEMPLATE"`
}

type AppContext struct {
	Config      Configuration
	SQLConn     *sqlx.DB
	DB          db.Storage
	SMTP        *gomail.Dialer
	MercadoPago *mercadopago.MP
	Reconciler  *reconcile.Reconciler
}

// IsProduction gates the fail-closed webhook signature policy.
func (ctx *AppContext) IsProduction() bool {
	return ctx.Config.Environment == "production"
}

func CreateConnectionSQL(conf database) (*sqlx.DB, error) {
	conn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true", conf.User, conf.Password, conf.URL, strconv.Itoa(conf.Port), conf.Name)
	connection, err := sqlx.Connect("mysql", conn)
	if err != nil {
		return nil, err
	}
	return connection, nil
}

func CreateNewConnectionSMTP(conf smtp) *gomail.Dialer {
	conn := gomail.NewDialer(conf.SMTPHost, conf.SMTPPort, conf.SMTPUser, conf.SMTPPassword)
	return conn
}

func CreateMercadoPagoIntegration(conf mercadopagoConf, backendBaseURL string) *mercadopago.MP {
	return mercadopago.New(
		conf.BaseURL,
		conf.MerchantOrderURL,
		conf.Token,
		conf.NotificationPath,
		backendBaseURL,
		time.Duration(conf.Timeout)*time.Second,
	)
}

type contextKey string

const loggerContextKey contextKey = "logger"

// WithLogger stores the per-request logger in the request context. Each
// request carries its own entry, so concurrent requests never share one.
func WithLogger(ctx context.Context, entry *log.Entry) context.Context {
	return context.WithValue(ctx, loggerContextKey, entry)
}

// LoggerFrom returns the request-scoped logger, falling back to the standard
// logger outside a request.
func LoggerFrom(ctx context.Context) *log.Entry {
	if ctx != nil {
		if entry, ok := ctx.Value(loggerContextKey).(*log.Entry); ok {
			return entry
		}
	}
	return log.NewEntry(log.StandardLogger())
}
