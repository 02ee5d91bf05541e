// Package journal persists zone transitions to SQLite so a session's signal
// history can be inspected after the fact. Only changes are written: a
// static scene produces no rows.
package journal

import (
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nvr-ai/go-zonetrack/controller"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const schema = `
CREATE TABLE IF NOT EXISTS transitions (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	session  TEXT    NOT NULL,
	camera   TEXT    NOT NULL,
	cycle    INTEGER NOT NULL,
	zone     INTEGER NOT NULL,
	level    INTEGER NOT NULL,
	x        INTEGER NOT NULL,
	y        INTEGER NOT NULL,
	observed INTEGER NOT NULL,
	at       TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transitions_session_camera ON transitions (session, camera);
`

// Transition is one journal row.
type Transition struct {
	Session  string
	Camera   string
	Cycle    int64
	Zone     controller.Zone
	High     bool
	X, Y     int
	Observed bool
	At       time.Time
}

// Journal appends transitions of one session.
type Journal struct {
	mu      sync.Mutex
	db      *sql.DB
	session string
	log     logrus.FieldLogger
	now     func() time.Time
}

// Open opens (creating if needed) the journal database and starts a new
// session.
//
// Arguments:
//   - path: SQLite file path, or ":memory:".
//   - logger: nil uses the standard logger.
//
// Returns:
//   - *Journal: Call Close when done.
//   - error: if the database cannot be opened or migrated.
func Open(path string, logger logrus.FieldLogger) (*Journal, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open journal %s", path)
	}
	// One connection: ":memory:" databases are per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create journal schema")
	}

	j := &Journal{
		db:      db,
		session: uuid.NewString(),
		log:     logger,
		now:     time.Now,
	}
	j.log.WithFields(logrus.Fields{"path": path, "session": j.session}).Info("journal opened")
	return j, nil
}

// Session returns the identifier of the current session.
func (j *Journal) Session() string {
	return j.session
}

// Record writes a row when the cycle changed the output state. Other cycles
// are ignored.
func (j *Journal) Record(res controller.CycleResult) error {
	if !res.Changed {
		return nil
	}
	t := Transition{
		Session: j.session,
		Camera:  res.Camera,
		Cycle:   res.Cycle,
		Zone:    res.State.Zone,
		High:    bool(res.State.Level),
		At:      j.now().UTC(),
	}
	if res.Observation != nil {
		t.Observed = true
		t.X = res.Observation.Point.X
		t.Y = res.Observation.Point.Y
	}
	return j.insert(t)
}

func (j *Journal) insert(t Transition) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, err := j.db.Exec(`
		INSERT INTO transitions (session, camera, cycle, zone, level, x, y, observed, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Session, t.Camera, t.Cycle, int(t.Zone), boolInt(t.High), t.X, t.Y, boolInt(t.Observed), t.At,
	)
	return errors.Wrap(err, "insert transition")
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Transitions returns the current session's rows for a camera in cycle
// order. An empty camera returns every camera.
func (j *Journal) Transitions(camera string) ([]Transition, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(`
		SELECT session, camera, cycle, zone, level, x, y, observed, at
		FROM transitions
		WHERE session = ? AND (? = '' OR camera = ?)
		ORDER BY id`, j.session, camera, camera)
	if err != nil {
		return nil, errors.Wrap(err, "query transitions")
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var (
			t               Transition
			zone            int
			level, observed int
		)
		if err := rows.Scan(&t.Session, &t.Camera, &t.Cycle, &zone, &level, &t.X, &t.Y, &observed, &t.At); err != nil {
			return nil, errors.Wrap(err, "scan transition")
		}
		t.Zone = controller.Zone(zone)
		t.High = level == 1
		t.Observed = observed == 1
		out = append(out, t)
	}
	return out, errors.Wrap(rows.Err(), "iterate transitions")
}

// Close closes the database.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.db.Close()
}
