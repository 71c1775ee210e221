package postgres

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/songzhibin97/mailregistry/pkg/registry"
)

// SQLSTATE codes translated into registry errors
const (
	sqlStateUniqueViolation     = "23505"
	sqlStateForeignKeyViolation = "23503"
	sqlStateCheckViolation      = "23514"
)

// uniqueMessages maps unique constraints onto user-facing conflicts
var uniqueMessages = map[string]*registry.Error{
	"services_code_key":   registry.NewConflictError("SERVICE_CODE_EXISTS", "un service avec ce code existe déjà"),
	"users_pkey":          registry.NewConflictError("USER_ALREADY_EXISTS", "un utilisateur avec cet identifiant existe déjà"),
	"admins_username_key": registry.NewConflictError("ADMIN_USERNAME_EXISTS", "un administrateur avec ce nom existe déjà"),
	"councils_login_key":  registry.NewConflictError("COUNCIL_LOGIN_EXISTS", "un élu avec ce login existe déjà"),
}

// translateError turns a driver error into a registry error. Registry errors
// pass through unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var regErr *registry.Error
	if errors.As(err, &regErr) {
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case sqlStateUniqueViolation:
			if known, ok := uniqueMessages[pqErr.Constraint]; ok {
				return &registry.Error{Type: known.Type, Code: known.Code, Message: known.Message, Cause: err}
			}
			return &registry.Error{Type: registry.ErrorTypeConflict, Code: "DUPLICATE_ENTRY", Message: "cette entrée existe déjà", Cause: err}
		case sqlStateForeignKeyViolation:
			return &registry.Error{Type: registry.ErrorTypeValidation, Code: "REFERENCE_INVALID", Message: "référence vers un enregistrement inexistant", Cause: err}
		case sqlStateCheckViolation:
			return &registry.Error{Type: registry.ErrorTypeValidation, Code: "VALUE_INVALID", Message: "valeur refusée par la base de données", Cause: err}
		}
	}

	return registry.NewDatabaseError("QUERY_FAILED", "database query failed", err)
}

// scanError maps sql.ErrNoRows onto notFound and translates anything else
func scanError(err error, notFound *registry.Error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return translateError(err)
}

// affectedOrNotFound reports notFound when a write matched no row
func affectedOrNotFound(result sql.Result, notFound *registry.Error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return registry.NewDatabaseError("ROWS_AFFECTED_FAILED", "failed to read affected rows", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
