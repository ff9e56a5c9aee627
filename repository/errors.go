package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a keyed lookup or mutation matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when an update carries a stale expected version.
	ErrConflict = errors.New("record was modified concurrently")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("record already exists")
)

const mysqlDuplicateEntry = 1062

// translate maps driver errors onto the package's sentinel errors, keeping
// the original error in the chain.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.Join(ErrDuplicate, err)
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		return errors.Join(ErrDuplicate, err)
	}
	return err
}
