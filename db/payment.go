package db

import (
	"database/sql"
	"fmt"
	"strings"

	"bitbucket.org/routeland/payments/models"
	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

const mysqlErrDuplicateEntry = 1062

// ErrDuplicateIdempotencyKey reports that another payment already owns the
// supplied idempotency key. Callers resolve it by re-reading the winner.
var ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

type PaymentStorage interface {
	InsertPayment(opts *InsertPaymentOpts) (int, error)
	GetPaymentByID(id int) (*models.Payment, error)
	GetPaymentsByOrderID(orderID int) ([]models.Payment, error)
	GetPaymentsByUserID(userID int, pagination *PaginationOpts) ([]models.Payment, error)
	GetPaymentsByStatus(status models.PaymentStatus, pagination *PaginationOpts) ([]models.Payment, error)
	GetPaymentByProviderRef(providerRef string) (*models.Payment, error)
	GetPaymentByPreferenceID(preferenceID string) (*models.Payment, error)
	GetPaymentByIdempotencyKey(key string) (*models.Payment, error)
	GetProcessingPaymentByOrderID(orderID int) (*models.Payment, error)
	UpdatePaymentData(id int, opts *UpdatePaymentDataOpts) error
}

type InsertPaymentOpts struct {
	OrderID        int
	UserID         int
	AmountCents    int
	Currency       string
	Method         string
	Description    string
	Provider       string
	Status         models.PaymentStatus
	IdempotencyKey *string
}

// UpdatePaymentDataOpts is a partial patch. Nil fields are left untouched.
type UpdatePaymentDataOpts struct {
	Status            *models.PaymentStatus
	ProviderRef       *string
	PreferenceID      *string
	ExternalReference *string
}

type PaginationOpts struct {
	Page  int
	Limit int
}

func (p *PaginationOpts) limitOffset() (int, int) {
	page := 1
	limit := 10
	if p != nil {
		if p.Page > 0 {
			page = p.Page
		}
		if p.Limit > 0 {
			limit = p.Limit
		}
	}
	return limit, (page - 1) * limit
}

const paymentColumns = `
	payment.id,
	payment.order_id,
	payment.user_id,
	payment.amount_cents,
	payment.currency,
	payment.method,
	payment.description,
	payment.status,
	payment.provider,
	payment.provider_ref,
	payment.provider_preference_id,
	payment.external_reference,
	payment.idempotency_key,
	payment.created,
	payment.updated
	`

const (
	insertPayment = `
	INSERT
		payment
	SET
		order_id = :order_id,
		user_id = :user_id,
		amount_cents = :amount_cents,
		currency = :currency,
		method = :method,
		description = :description,
		status = :status,
		provider = :provider,
		idempotency_key = :idempotency_key
	`

	getPaymentByID = `
	SELECT` + paymentColumns + `
	FROM
		payment
	WHERE
		payment.id = :id
	`

	getPaymentsByOrderID = `
	SELECT` + paymentColumns + `
	FROM
		payment
	WHERE
		payment.order_id = :order_id
	ORDER BY
		payment.created ASC
	`

	getPaymentsByUserID = `
	SELECT` + paymentColumns + `
	FROM
		payment
	WHERE
		payment.user_id = :user_id
	ORDER BY
		payment.created DESC
	LIMIT :limit OFFSET :offset
	`

	getPaymentsByStatus = `
	SELECT` + paymentColumns + `
	FROM
		payment
	WHERE
		payment.status = :status
	ORDER BY
		payment.created DESC
	LIMIT :limit OFFSET :offset
	`

	getPaymentByProviderRef = `
	SELECT` + paymentColumns + `
	FROM
		payment
	WHERE
		payment.provider_ref = :provider_ref
	ORDER BY
		payment.created DESC
	LIMIT 1
	`

	getPaymentByPreferenceID = `
	SELECT` + paymentColumns + `
	FROM
		payment
	WHERE
		payment.provider_preference_id = :provider_preference_id
	ORDER BY
		payment.created DESC
	LIMIT 1
	`

	getPaymentByIdempotencyKey = `
	SELECT` + paymentColumns + `
	FROM
		payment
	WHERE
		payment.idempotency_key = :idempotency_key
	LIMIT 1
	`

	getProcessingPaymentByOrderID = `
	SELECT` + paymentColumns + `
	FROM
		payment
	WHERE
		payment.order_id = :order_id AND
		payment.status = :status
	ORDER BY
		payment.created DESC
	LIMIT 1
	`
)

func (db *DB) InsertPayment(opts *InsertPaymentOpts) (int, error) {
	tx, err := db.NewTx()
	if err != nil {
		return 0, errors.Wrap(err, "failed to start transaction")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}

		tx.Commit()
	}()

	id, newErr := db.insertPaymentTx(tx, opts)
	if newErr != nil {
		err = newErr
		return 0, err
	}

	return id, nil
}

func (db *DB) insertPaymentTx(tx Tx, opts *InsertPaymentOpts) (int, error) {
	stmt, err := tx.PrepareNamed(insertPayment)
	if err != nil {
		return 0, err
	}

	status := opts.Status
	if status == "" {
		status = models.PaymentStatusPending
	}

	args := map[string]interface{}{
		"order_id":        opts.OrderID,
		"user_id":         opts.UserID,
		"amount_cents":    opts.AmountCents,
		"currency":        opts.Currency,
		"method":          opts.Method,
		"description":     opts.Description,
		"status":          status,
		"provider":        opts.Provider,
		"idempotency_key": opts.IdempotencyKey,
	}

	result, err := stmt.Exec(args)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrDuplicateEntry {
			return 0, ErrDuplicateIdempotencyKey
		}
		return 0, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	if int(rowsAffected) != 1 {
		return 0, errors.Errorf("expected %d and inserted %d", 1, rowsAffected)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	return int(id), nil
}

func (db *DB) GetPaymentByID(id int) (*models.Payment, error) {
	return db.getPayment(getPaymentByID, map[string]interface{}{"id": id})
}

func (db *DB) GetPaymentsByOrderID(orderID int) ([]models.Payment, error) {
	return db.getPayments(getPaymentsByOrderID, map[string]interface{}{"order_id": orderID})
}

func (db *DB) GetPaymentsByUserID(userID int, pagination *PaginationOpts) ([]models.Payment, error) {
	limit, offset := pagination.limitOffset()
	return db.getPayments(getPaymentsByUserID, map[string]interface{}{
		"user_id": userID,
		"limit":   limit,
		"offset":  offset,
	})
}

func (db *DB) GetPaymentsByStatus(status models.PaymentStatus, pagination *PaginationOpts) ([]models.Payment, error) {
	limit, offset := pagination.limitOffset()
	return db.getPayments(getPaymentsByStatus, map[string]interface{}{
		"status": status,
		"limit":  limit,
		"offset": offset,
	})
}

func (db *DB) GetPaymentByProviderRef(providerRef string) (*models.Payment, error) {
	return db.getPayment(getPaymentByProviderRef, map[string]interface{}{"provider_ref": providerRef})
}

func (db *DB) GetPaymentByPreferenceID(preferenceID string) (*models.Payment, error) {
	return db.getPayment(getPaymentByPreferenceID, map[string]interface{}{"provider_preference_id": preferenceID})
}

func (db *DB) GetPaymentByIdempotencyKey(key string) (*models.Payment, error) {
	return db.getPayment(getPaymentByIdempotencyKey, map[string]interface{}{"idempotency_key": key})
}

func (db *DB) GetProcessingPaymentByOrderID(orderID int) (*models.Payment, error) {
	return db.getPayment(getProcessingPaymentByOrderID, map[string]interface{}{
		"order_id": orderID,
		"status":   models.PaymentStatusProcessing,
	})
}

func (db *DB) getPayment(query string, args map[string]interface{}) (*models.Payment, error) {
	stmt, err := db.PrepareNamed(query)
	if err != nil {
		return nil, err
	}

	var payment models.Payment
	if err := stmt.Get(&payment, args); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, err
	}

	return &payment, nil
}

func (db *DB) getPayments(query string, args map[string]interface{}) ([]models.Payment, error) {
	stmt, err := db.PrepareNamed(query)
	if err != nil {
		return nil, err
	}

	var payments []models.Payment
	if err := stmt.Select(&payments, args); err != nil {
		return nil, err
	}

	return payments, nil
}

// UpdatePaymentData writes only the fields supplied in opts, always bumping
// the updated timestamp. Row-level atomicity comes from the single UPDATE.
func (db *DB) UpdatePaymentData(id int, opts *UpdatePaymentDataOpts) error {
	tx, err := db.NewTx()
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}

		tx.Commit()
	}()

	err = db.updatePaymentDataTx(tx, id, opts)
	if err != nil {
		return err
	}

	return nil
}

func (db *DB) updatePaymentDataTx(tx Tx, id int, opts *UpdatePaymentDataOpts) error {
	sets, args := BuildPaymentPatch(opts)
	args["id"] = id

	query := fmt.Sprintf(`
	UPDATE
		payment
	SET
		%s
	WHERE
		id = :id
	`, strings.Join(sets, ",\n\t\t"))

	stmt, err := tx.PrepareNamed(query)
	if err != nil {
		return err
	}

	result, err := stmt.Exec(args)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if int(rowsAffected) > 1 {
		return errors.Errorf("expected at most %d and updated %d", 1, rowsAffected)
	}

	return nil
}

// BuildPaymentPatch translates a partial-update opts struct into SET clauses
// and named args. Exported so the patch assembly is testable without a
// database.
func BuildPaymentPatch(opts *UpdatePaymentDataOpts) ([]string, map[string]interface{}) {
	sets := []string{"updated = current_timestamp()"}
	args := map[string]interface{}{}

	if opts == nil {
		return sets, args
	}
	if opts.Status != nil {
		sets = append(sets, "status = :status")
		args["status"] = *opts.Status
	}
	if opts.ProviderRef != nil {
		sets = append(sets, "provider_ref = :provider_ref")
		args["provider_ref"] = *opts.ProviderRef
	}
	if opts.PreferenceID != nil {
		sets = append(sets, "provider_preference_id = :provider_preference_id")
		args["provider_preference_id"] = *opts.PreferenceID
	}
	if opts.ExternalReference != nil {
		sets = append(sets, "external_reference = :external_reference")
		args["external_reference"] = *opts.ExternalReference
	}

	return sets, args
}
