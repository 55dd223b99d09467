// Package walink implements session.Linker over the whatsmeow WhatsApp
// multi-device client. Each session owns exactly one client instance; the
// library's callback stream is normalized into session.Event values and
// none of its types leak past this package.
package walink

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"

	"github.com/truthmd/truthlink/internal/session"
)

// Factory builds one linker per session. All whatsmeow device rows live in
// a sqlstore container wrapped around the application's database handle so
// no second connection or schema is opened.
type Factory struct {
	container   *sqlstore.Container
	displayName string
}

// NewFactory wraps the shared database connection for whatsmeow and runs
// the library's own schema migrations.
func NewFactory(ctx context.Context, db *sql.DB, dbType string) (*Factory, error) {
	var dialect string
	switch strings.ToLower(strings.TrimSpace(dbType)) {
	case "postgres", "postgresql":
		dialect = "postgres"
	default:
		dialect = "sqlite3"
	}

	container := sqlstore.NewWithDB(db, dialect, nil)
	if err := container.Upgrade(ctx); err != nil {
		return nil, errors.Wrap(err, "whatsmeow store upgrade")
	}
	return &Factory{
		container:   container,
		displayName: "TruthLink (Chrome)",
	}, nil
}

// New creates the linker for a fresh session. The device row is provisioned
// lazily by whatsmeow itself once pairing succeeds.
func (f *Factory) New(sessionID string, method session.Method, phone string) (session.Linker, error) {
	device := f.container.NewDevice()
	device.PushName = "TruthLink"

	return &linker{
		sessionID:   sessionID,
		method:      method,
		phone:       phone,
		displayName: f.displayName,
		container:   f.container,
		device:      device,
		client:      whatsmeow.NewClient(device, nil),
		events:      make(chan session.Event, 16),
		done:        make(chan struct{}),
	}, nil
}
