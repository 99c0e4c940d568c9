package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"careerwatch/internal/config"
	"careerwatch/internal/secrets"
	"careerwatch/internal/store"
)

// runSetSecret reads one line from in and stores it in the OS keyring.
func runSetSecret(cfg config.Config, kindName string, in io.Reader) error {
	kind, err := secrets.ParseKind(kindName)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%s secret for %s: ", kind, secrets.Account(kind, cfg))

	sc := bufio.NewScanner(in)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return err
		}
		return errors.New("no secret on stdin")
	}
	value := strings.TrimSpace(sc.Text())

	if err := secrets.NewStore().Set(kind, cfg, value); err != nil {
		return fmt.Errorf("store %s secret: %w", kind, err)
	}
	fmt.Fprintf(os.Stderr, "\nstored %s secret in the keyring (service %q)\n", kind, secrets.KeyringService)
	return nil
}

func printHistory(cfg config.Config, n int, w io.Writer) error {
	if cfg.Storage.HistoryDB == "" {
		return errors.New("storage.history_db is not configured")
	}
	db, err := store.Open(cfg.DataPath(cfg.Storage.HistoryDB))
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := store.RecentRuns(context.Background(), db.Pool, n)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tSOURCE\tOK\tPOSTINGS\tADDED\tREMOVED\tERROR")
	for _, r := range runs {
		errText := r.Error
		if errText == "" && r.NotifyError != "" {
			errText = "notify: " + r.NotifyError
		}
		fmt.Fprintf(tw, "%s\t%s\t%v\t%d\t%d\t%d\t%s\n",
			r.StartedAt.Local().Format(time.DateTime), r.Source, r.OK,
			r.Postings, r.Added, r.Removed, errText)
	}
	return tw.Flush()
}
