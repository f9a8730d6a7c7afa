// Package orchestrator drives the migration pipeline's phase machine: it
// advances the global phase cursor and, within the per-bucket phases,
// drives each bucket through download, verify, and (on confirmation)
// delete in strict order.
package orchestrator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mahrens917/aws-sub001/config"
	"github.com/mahrens917/aws-sub001/deleter"
	"github.com/mahrens917/aws-sub001/downloader"
	"github.com/mahrens917/aws-sub001/glacier"
	"github.com/mahrens917/aws-sub001/progress"
	"github.com/mahrens917/aws-sub001/s3api"
	"github.com/mahrens917/aws-sub001/scanner"
	"github.com/mahrens917/aws-sub001/store"
	"github.com/mahrens917/aws-sub001/verify"
)

// ErrBucketStateIncomplete is raised when a bucket record is missing one of
// the verification fields the delete gate requires, per the store's
// mandatory-field contract.
var ErrBucketStateIncomplete = errors.New("bucket state is incomplete")

// ConfirmFunc is asked whether bucket may be deleted from the cloud. The
// default, non-interactive implementation always refuses.
type ConfirmFunc func(bucket string) bool

// Orchestrator runs the full phase machine end to end, resuming from
// whatever phase and per-bucket substate the store records.
type Orchestrator struct {
	client  s3api.Client
	store   *store.Store
	cfg     *config.Config
	scanner *scanner.Scanner
	glacier *glacier.Coordinator
	dl      *downloader.Downloader
	ver     *verify.Verifier
	del     *deleter.Deleter
	confirm ConfirmFunc
}

// New constructs an Orchestrator wiring every stage component from a single
// client, store, and config.
func New(client s3api.Client, st *store.Store, cfg *config.Config, confirm ConfirmFunc) *Orchestrator {
	if confirm == nil {
		confirm = RefuseConfirm
	}
	return &Orchestrator{
		client:  client,
		store:   st,
		cfg:     cfg,
		scanner: scanner.New(client, st, cfg),
		glacier: glacier.New(client, st, cfg),
		dl:      downloader.New(client, st, cfg),
		ver:     verify.NewVerifier(st, cfg.LocalBasePath),
		del:     deleter.New(client, st),
		confirm: confirm,
	}
}

// RefuseConfirm is the default confirmation function: it always refuses,
// matching the documented behavior for non-interactive execution.
func RefuseConfirm(bucket string) bool { return false }

// StdinConfirm prompts on r and treats a "yes" line (case-insensitive) as
// confirmation, for interactive callers.
func StdinConfirm(r io.Reader, w io.Writer) ConfirmFunc {
	return func(bucket string) bool {
		fmt.Fprintf(w, "delete all objects from %s and remove the bucket? type 'yes' to confirm: ", bucket)
		scanner := bufio.NewScanner(r)
		if !scanner.Scan() {
			return false
		}
		return strings.EqualFold(strings.TrimSpace(scanner.Text()), "yes")
	}
}

// Run advances the global phase cursor from wherever it currently sits
// through to complete, re-entering whatever phase the store records so a
// restarted process resumes exactly where it left off.
func (o *Orchestrator) Run(ctx context.Context, token *progress.Token) error {
	if err := o.store.InitializePhase(); err != nil {
		return err
	}

	for {
		if token.Cancelled() {
			return nil
		}

		phase, err := o.store.CurrentPhase()
		if err != nil {
			return err
		}

		switch phase {
		case store.PhaseScanning:
			if err := o.scanner.ScanAll(ctx, token); err != nil {
				return failurePhase(phase, err)
			}
			if token.Cancelled() {
				return nil
			}
			if err := o.store.SetCurrentPhase(store.PhaseGlacierRestore); err != nil {
				return err
			}

		case store.PhaseGlacierRestore:
			if err := o.glacier.RequestRestores(ctx, token); err != nil {
				return failurePhase(phase, err)
			}
			if token.Cancelled() {
				return nil
			}
			if err := o.store.SetCurrentPhase(store.PhaseGlacierWait); err != nil {
				return err
			}

		case store.PhaseGlacierWait:
			if err := o.glacier.WaitForRestores(ctx, token); err != nil {
				return failurePhase(phase, err)
			}
			if token.Cancelled() {
				return nil
			}
			if err := o.store.SetCurrentPhase(store.PhaseSyncing); err != nil {
				return err
			}

		case store.PhaseSyncing, store.PhaseVerifying, store.PhaseDeleting:
			allDone, err := o.processAllBuckets(ctx, token)
			if err != nil {
				return failurePhase(phase, err)
			}
			if token.Cancelled() {
				return nil
			}
			if !allDone {
				// One or more buckets are still awaiting delete confirmation;
				// the phase stays put so a re-run picks up where it left off.
				return nil
			}
			if err := o.store.SetCurrentPhase(store.PhaseComplete); err != nil {
				return err
			}

		case store.PhaseComplete:
			return nil

		default:
			return fmt.Errorf("%w: unrecognized phase %q", store.ErrStateCorrupt, phase)
		}
	}
}

// processAllBuckets drives every scanned bucket through its per-bucket
// substate machine: sync, then verify, then (on confirmation) delete. It
// returns true only if every bucket reached delete_complete.
func (o *Orchestrator) processAllBuckets(ctx context.Context, token *progress.Token) (bool, error) {
	buckets, err := o.store.GetCompletedBucketsForPhase(store.FlagScanComplete)
	if err != nil {
		return false, err
	}

	allDone := true
	for _, rec := range buckets {
		if token.Cancelled() {
			return false, nil
		}
		if err := o.processBucket(ctx, rec.Bucket, token); err != nil {
			return false, err
		}

		updated, _, err := o.store.GetBucketInfo(rec.Bucket)
		if err != nil {
			return false, err
		}
		if !updated.DeleteComplete {
			allDone = false
		}
	}
	return allDone, nil
}

// processBucket runs whichever substages bucket has not yet completed, in
// strict sync -> verify -> delete order, gated by the store's mandatory
// verification fields before delete is ever attempted.
func (o *Orchestrator) processBucket(ctx context.Context, bucket string, token *progress.Token) error {
	rec, found, err := o.store.GetBucketInfo(bucket)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s has no bucket record", ErrBucketStateIncomplete, bucket)
	}

	if !rec.SyncComplete {
		if err := o.dl.SyncBucket(ctx, bucket, token); err != nil {
			return err
		}
		if token.Cancelled() {
			return nil
		}
		rec, _, err = o.store.GetBucketInfo(bucket)
		if err != nil {
			return err
		}
	}

	if !rec.VerifyComplete || rec.VerifiedFileCount == nil {
		if err := o.ver.VerifyBucket(bucket, token); err != nil {
			return err
		}
		if token.Cancelled() {
			return nil
		}
		rec, _, err = o.store.GetBucketInfo(bucket)
		if err != nil {
			return err
		}
	}

	if rec.DeleteComplete {
		return nil
	}

	if err := store.RequireMandatoryFields(rec); err != nil {
		return fmt.Errorf("%w: %v", ErrBucketStateIncomplete, err)
	}
	if !rec.VerifyComplete {
		return fmt.Errorf("%w: %s has not completed verification", ErrBucketStateIncomplete, bucket)
	}

	if !o.confirm(bucket) {
		return nil
	}

	if o.cfg.DryRun {
		return nil
	}

	return o.del.DeleteBucket(ctx, bucket, token)
}

// failurePhase annotates err with the phase it occurred in and the
// standard next step. The phase cursor in the store is left untouched, so
// re-running the orchestrator resumes at the same phase.
func failurePhase(phase store.Phase, err error) error {
	return fmt.Errorf("phase %s failed, re-run to resume: %w", phase, err)
}
