package main

import (
	"context"
	"fmt"

	"github.com/tsukumogami/aigene/internal/errmsg"
	"github.com/tsukumogami/aigene/internal/prompt"
	"github.com/tsukumogami/aigene/internal/selfupdate"
)

// launchUpdateCheck asks the update source once, offers one retry when
// the answer is unknown, and stages the update if the operator agrees.
func (a *app) launchUpdateCheck(ctx context.Context, p prompt.Prompter) {
	checker, err := a.checker()
	if err != nil {
		a.logger.Warn("update check disabled", "error", err)
		return
	}

	fmt.Fprintln(a.out, "Checking for updates...")
	info, ok := checker.Check(ctx)
	if !ok {
		if retry, _ := p.Confirm(ctx, "The update check failed. Retry?"); retry {
			info, ok = checker.Check(ctx)
		}
	}
	if !ok {
		fmt.Fprintln(a.out, "Could not check for updates. Check your network connection and that the update server is reachable.")
		return
	}
	if !info.Available {
		return
	}

	fmt.Fprintf(a.out, "\nCurrent version: %s\nLatest version:  %s\n", info.Current, info.Latest)
	if !info.CanDownload {
		fmt.Fprintf(a.out, "A new version is being prepared (server has %s); try again later.\n", info.ServerVersion)
		return
	}
	yes, err := p.Confirm(ctx, "A new version is available. Update now?")
	if err != nil || !yes {
		fmt.Fprintln(a.out, "Update skipped.")
		return
	}

	uctx, stop := interruptible(ctx)
	defer stop()
	res, err := a.applyUpdate(uctx, info)
	reportUpdate(a, res, err)
}

// reportUpdate prints the outcome of applyUpdate.
func reportUpdate(a *app, res *selfupdate.Result, err error) {
	if err != nil {
		fmt.Fprintf(a.out, "Update failed: %s\n", errmsg.Format(err, nil))
		fmt.Fprintf(a.out, "Details were appended to %s.\n", a.cfg.UpdateLogFile)
		return
	}
	if res.RecordWritten {
		fmt.Fprintf(a.out, "%d files are in use and will be replaced the next time aigene starts.\n", len(res.Skipped))
	}
	fmt.Fprintln(a.out, "Update complete. Restart aigene to use the new version.")
}

// offerPendingDeps offers to install dependencies recorded by an earlier
// run, then to run the script they belong to.
func (a *app) offerPendingDeps(ctx context.Context, p prompt.Prompter) {
	wf := a.workflow()
	rec, err := wf.Status(ctx)
	if err != nil {
		a.logger.Warn("could not read pending dependencies", "error", err)
		return
	}
	if rec == nil {
		return
	}

	fmt.Fprintf(a.out, "\n%d dependencies of %s were not installed last time:\n", len(rec.Requirements), rec.ArtifactPath)
	for _, r := range rec.Requirements {
		fmt.Fprintf(a.out, "  - %s\n", r)
	}
	if yes, _ := p.Confirm(ctx, "Install them now?"); !yes {
		return
	}

	ictx, stop := interruptible(ctx)
	res, err := wf.Resume(ictx)
	stop()
	if err != nil {
		fmt.Fprintf(a.out, "Installing pending dependencies failed: %s\n", errmsg.Format(err, nil))
		return
	}
	if res == nil || !res.Done() {
		return
	}

	if yes, _ := p.Confirm(ctx, fmt.Sprintf("All dependencies installed. Run %s now?", rec.ArtifactPath)); !yes {
		return
	}
	rctx, stop := interruptible(ctx)
	defer stop()
	if code, err := a.runScript(rctx, rec.ArtifactPath); err != nil {
		fmt.Fprintf(a.out, "Could not run the script: %v\n", err)
	} else if code != 0 {
		fmt.Fprintf(a.out, "The script exited with status %d.\n", code)
	}
}
