// Package verify scans a durable journal and reports records that violate
// the log's ordering and integrity guarantees. It is an operational check for
// journals written by older builds or recovered from backups; a healthy store
// cannot produce these violations.
package verify

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/eventjournal/internal/journal"
	"github.com/louisbranch/eventjournal/internal/journal/sqlite"
	"github.com/louisbranch/eventjournal/internal/platform/config"
)

// Config holds verify command configuration.
type Config struct {
	EntityID    string
	DBPath      string        `env:"EVENT_JOURNAL_DB_PATH"`
	Timeout     time.Duration `env:"EVENT_JOURNAL_VERIFY_TIMEOUT" envDefault:"5m"`
	WarningsCap int
	JSONOutput  bool
}

type envConfig struct {
	DBPath  string        `env:"EVENT_JOURNAL_DB_PATH"`
	Timeout time.Duration `env:"EVENT_JOURNAL_VERIFY_TIMEOUT" envDefault:"5m"`
}

// ParseConfig parses env defaults and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var envCfg envConfig
	if err := config.ParseEnv(&envCfg); err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:      envCfg.DBPath,
		Timeout:     envCfg.Timeout,
		WarningsCap: 25,
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join("data", "journal.db")
	}

	fs.StringVar(&cfg.EntityID, "entity-id", "", "verify a single entity instead of the whole journal")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to journal sqlite database (default: EVENT_JOURNAL_DB_PATH or data/journal.db)")
	fs.IntVar(&cfg.WarningsCap, "warnings-cap", cfg.WarningsCap, "max problems to print (0 = no limit)")
	fs.BoolVar(&cfg.JSONOutput, "json", false, "output a JSON report")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Problem describes one violated invariant.
type Problem struct {
	EntityID string `json:"entity_id"`
	EventID  string `json:"event_id,omitempty"`
	Version  uint64 `json:"version,omitempty"`
	Detail   string `json:"detail"`
}

// Report summarizes one verification run.
type Report struct {
	Entities int       `json:"entities"`
	Events   int       `json:"events"`
	Problems []Problem `json:"problems,omitempty"`
}

// Run executes the verify command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			fmt.Fprintf(errOut, "Error: close journal store: %v\n", closeErr)
		}
	}()

	report, err := Scan(ctx, store, cfg.EntityID)
	if err != nil {
		return err
	}

	if cfg.JSONOutput {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(report); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
	} else {
		printReport(out, report, cfg.WarningsCap)
	}

	if len(report.Problems) > 0 {
		return fmt.Errorf("journal verification found %d problem(s)", len(report.Problems))
	}
	return nil
}

// entityLister is the durable-store surface Scan needs beyond the Store
// contract.
type entityLister interface {
	journal.Store
	Entities(ctx context.Context) ([]string, error)
}

// Scan checks every record of the selected entities against the journal
// invariants: strictly ascending versions per entity, globally unique record
// IDs, non-zero timestamps, and well-formed payload documents.
func Scan(ctx context.Context, store entityLister, entityID string) (Report, error) {
	var report Report

	entities := []string{entityID}
	if strings.TrimSpace(entityID) == "" {
		listed, err := store.Entities(ctx)
		if err != nil {
			return Report{}, err
		}
		entities = listed
	}

	seenIDs := make(map[string]string)
	for _, entity := range entities {
		events, err := store.GetEvents(ctx, entity)
		if err != nil {
			return Report{}, err
		}
		report.Entities++
		report.Events += len(events)

		var lastVersion uint64
		for i, evt := range events {
			if i > 0 && evt.Version <= lastVersion {
				report.Problems = append(report.Problems, Problem{
					EntityID: entity,
					EventID:  evt.ID,
					Version:  evt.Version,
					Detail:   fmt.Sprintf("version %d not above predecessor %d", evt.Version, lastVersion),
				})
			}
			lastVersion = evt.Version

			if owner, dup := seenIDs[evt.ID]; dup {
				report.Problems = append(report.Problems, Problem{
					EntityID: entity,
					EventID:  evt.ID,
					Version:  evt.Version,
					Detail:   "record id already used by entity " + owner,
				})
			}
			seenIDs[evt.ID] = entity

			if evt.Timestamp.IsZero() {
				report.Problems = append(report.Problems, Problem{
					EntityID: entity,
					EventID:  evt.ID,
					Version:  evt.Version,
					Detail:   "record has no timestamp",
				})
			}
			if len(evt.PayloadJSON) > 0 && !json.Valid(evt.PayloadJSON) {
				report.Problems = append(report.Problems, Problem{
					EntityID: entity,
					EventID:  evt.ID,
					Version:  evt.Version,
					Detail:   "payload is not valid JSON",
				})
			}
		}
	}

	return report, nil
}

func printReport(out io.Writer, report Report, limit int) {
	fmt.Fprintf(out, "scanned %d entities, %d events\n", report.Entities, report.Events)
	if len(report.Problems) == 0 {
		fmt.Fprintln(out, "journal is consistent")
		return
	}

	for i, problem := range report.Problems {
		if limit > 0 && i >= limit {
			fmt.Fprintf(out, "... and %d more\n", len(report.Problems)-limit)
			return
		}
		fmt.Fprintf(out, "entity %s version %d (%s): %s\n", problem.EntityID, problem.Version, problem.EventID, problem.Detail)
	}
}
