package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/erazemk/oprema/internal/client"
	"github.com/erazemk/oprema/internal/config"
	"github.com/erazemk/oprema/internal/imaging"
	"github.com/erazemk/oprema/internal/scanner"
)

// repeatWindow suppresses the same code held in front of the camera.
const repeatWindow = 3 * time.Second

type scanOptions struct {
	dir          string
	frames       []string
	stdin        bool
	count        int
	removeReason string
	removeNotes  string
	mirror       bool
	preview      string
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	var opts scanOptions

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Read codes from the camera and show each item",
		Long: `Scan reads frames from a camera frame directory, still images or stdin,
decodes QR codes and UPCs and shows the matching equipment. With --remove every
scanned item is removed from inventory with that reason.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(c *client.Client) error {
				return runScan(cmd, ctx, c, opts)
			})
		},
	}

	cmd.Flags().StringVar(&opts.dir, "dir", "", "Directory a camera writes frames into (default: station.camera_dir)")
	cmd.Flags().StringArrayVar(&opts.frames, "frame", nil, "Still image to scan (repeatable)")
	cmd.Flags().BoolVar(&opts.stdin, "stdin", false, "Read a single image from stdin")
	cmd.Flags().IntVarP(&opts.count, "count", "n", 0, "Stop after this many codes (0: until interrupted)")
	cmd.Flags().StringVar(&opts.removeReason, "remove", "", "Remove every scanned item with this reason")
	cmd.Flags().StringVar(&opts.removeNotes, "notes", "", "Notes recorded with --remove")
	cmd.Flags().BoolVar(&opts.mirror, "mirror", false, "Mirror the preview image (front cameras)")
	cmd.Flags().StringVar(&opts.preview, "preview", "", "Write a JPEG preview of the first frame to this file")
	return cmd
}

func scanBackends(cmd *cobra.Command, cfg config.Station, opts scanOptions) []scanner.Backend {
	var backends []scanner.Backend
	dir := opts.dir
	if dir == "" {
		dir = cfg.CameraDir
	}
	if dir != "" {
		backends = append(backends, scanner.DirBackend{Dir: dir})
	}
	frames := opts.frames
	if len(frames) == 0 {
		frames = cfg.Frames
	}
	if len(frames) > 0 {
		backends = append(backends, scanner.FilesBackend{Paths: frames})
	}
	if opts.stdin {
		backends = append(backends, scanner.ReaderBackend{R: cmd.InOrStdin()})
	}
	return backends
}

func runScan(cmd *cobra.Command, ctx *commandContext, c *client.Client, opts scanOptions) error {
	cfg := ctx.config.Station
	capture := scanner.NewCapture(scanner.DefaultConstraints(),
		scanner.Environment{ServerURL: cfg.ServerURL, Mobile: cfg.Mobile},
		scanBackends(cmd, cfg, opts)...)
	session := scanner.NewSession(capture, scanner.NewNativeDetector())

	if err := session.Start(cmd.Context()); err != nil {
		var ce *scanner.CameraError
		if errors.As(err, &ce) {
			for _, line := range ce.Capabilities.Remediation() {
				fmt.Fprintln(cmd.ErrOrStderr(), "  "+line)
			}
		}
		return err
	}
	defer session.Stop()

	if opts.mirror {
		session.ToggleMirror()
	}
	if opts.preview != "" {
		if err := writePreview(cmd.Context(), session, opts.preview); err != nil {
			return err
		}
	}

	st := client.NewStation(c, session)
	out := cmd.OutOrStdout()
	color := ctx.colorize(cmd)

	var (
		lastCode string
		lastAt   time.Time
		handled  int
	)
	for opts.count == 0 || handled < opts.count {
		res, err := st.ScanNext(cmd.Context())
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return summarize(cmd, st, opts)
		case errors.Is(err, scanner.ErrNoMatch):
			if opts.count == 1 {
				return err
			}
			slog.Info("no barcode in frames, retrying", "attempts", session.Attempts())
			continue
		case errors.Is(err, scanner.ErrNotActive):
			return err
		case err != nil:
			var ae *client.ActionError
			if !errors.As(err, &ae) {
				return err
			}
			// Server and network failures are shown and scanning goes on.
			fmt.Fprintln(out, renderError(err, color))
			handled++
			continue
		}

		if wait := repeatWindow - time.Since(lastAt); res.Code == lastCode && wait > 0 {
			select {
			case <-cmd.Context().Done():
				return summarize(cmd, st, opts)
			case <-time.After(wait):
			}
			continue
		}
		lastCode, lastAt = res.Code, time.Now()
		handled++

		if err := ctx.output(cmd, res, func() string { return renderScan(res, color) }); err != nil {
			return err
		}

		if opts.removeReason != "" && res.Detail != nil {
			removed, err := st.Remove(cmd.Context(), opts.removeReason, opts.removeNotes)
			if err != nil {
				fmt.Fprintln(out, renderError(err, color))
				continue
			}
			fmt.Fprint(out, renderRemoval(removed))
		}
	}
	return summarize(cmd, st, opts)
}

func writePreview(ctx context.Context, session *scanner.Session, path string) error {
	frame, err := session.Preview(ctx)
	if err != nil {
		return fmt.Errorf("reading preview frame: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating preview file: %w", err)
	}
	if err := imaging.EncodeJPEG(f, frame); err != nil {
		f.Close()
		return fmt.Errorf("encoding preview: %w", err)
	}
	return f.Close()
}

func summarize(cmd *cobra.Command, st *client.Station, opts scanOptions) error {
	if opts.removeReason == "" {
		return nil
	}
	removed := st.Removed()
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d item(s) this session\n", len(removed))
	for _, id := range removed {
		fmt.Fprintln(cmd.OutOrStdout(), "  "+id)
	}
	return nil
}
