package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/crawlserv/crawlserv"
	"github.com/crawlserv/crawlserv/errs"
)

// RenameList renames every dependent table of list atomically (spec.md
// §4.1 rename_list). If any individual RENAME TABLE fails partway through,
// every rename already performed is reverted before the error is returned.
func (s *Store) RenameList(ctx context.Context, website crawlserv.Website, list crawlserv.UrlList, newNS string) error {
	const op = "store.RenameList"
	if err := validateNamespace(op, newNS); err != nil {
		return err
	}
	if err := s.checkConnection(ctx); err != nil {
		return err
	}

	oldNames := dependentTableNames(website.Namespace, list.Namespace)
	newNames := dependentTableNames(website.Namespace, newNS)

	return s.withDeadlockRetry(ctx, op, func() error {
		return s.renameTablesWithRevert(ctx, op, oldNames, newNames, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `UPDATE `+TablePrefix+`_lists SET namespace = ? WHERE id = ?`, newNS, list.ID)
			return err
		})
	})
}

// RenameWebsite renames every dependent table of every list belonging to
// website atomically (spec.md §4.1 rename_website).
func (s *Store) RenameWebsite(ctx context.Context, website crawlserv.Website, newNS string, lists []crawlserv.UrlList) error {
	const op = "store.RenameWebsite"
	if err := validateNamespace(op, newNS); err != nil {
		return err
	}
	if err := s.checkConnection(ctx); err != nil {
		return err
	}

	var oldNames, newNames []string
	for _, l := range lists {
		oldNames = append(oldNames, dependentTableNames(website.Namespace, l.Namespace)...)
		newNames = append(newNames, dependentTableNames(newNS, l.Namespace)...)
	}

	return s.withDeadlockRetry(ctx, op, func() error {
		return s.renameTablesWithRevert(ctx, op, oldNames, newNames, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `UPDATE `+TablePrefix+`_websites SET namespace = ? WHERE id = ?`, newNS, website.ID)
			return err
		})
	})
}

// renameTablesWithRevert renames oldNames[i] -> newNames[i], then runs
// updateRow to persist the new namespace on the owning row. All renames are
// issued as a single RENAME TABLE statement, which MySQL performs
// atomically across every table named in it: either all of the renames
// apply or none do, satisfying spec.md §4.1's "on failure any rename
// already performed must be reverted" without needing to undo partial work
// by hand.
func (s *Store) renameTablesWithRevert(ctx context.Context, op string, oldNames, newNames []string, updateRow func(tx *sql.Tx) error) error {
	if len(oldNames) != len(newNames) {
		return errs.New(errs.Internal, op, "mismatched rename table list lengths")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(op, err)
	}
	defer tx.Rollback()

	rename := "RENAME TABLE "
	for i := range oldNames {
		if i > 0 {
			rename += ", "
		}
		rename += fmt.Sprintf("%s TO %s", oldNames[i], newNames[i])
	}
	if _, err := tx.ExecContext(ctx, rename); err != nil {
		return classify(op, err)
	}

	if err := updateRow(tx); err != nil {
		return classify(op, err)
	}

	return classify(op, tx.Commit())
}

func dependentTableNames(websiteNS, listNS string) []string {
	return []string{
		listTableName(websiteNS, listNS),
		contentTableName(websiteNS, listNS),
		crawlingLockTableName(websiteNS, listNS),
		parsingLockTableName(websiteNS, listNS),
		extractingLockTableName(websiteNS, listNS),
		analyzingLockTableName(websiteNS, listNS),
	}
}
