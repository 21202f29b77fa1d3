package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"gpcam/internal/camera"
	"gpcam/internal/camerr"
	"gpcam/internal/model"
	"gpcam/internal/session"
)

func needArgs(args []string, min, max int, usage string) error {
	if len(args) < min || len(args) > max {
		return fmt.Errorf("usage: gpcam %s", usage)
	}
	return nil
}

// offline builds an unconnected camera for the registry and discovery.
func offline(e *env) *camera.Camera {
	return camera.New(e.p, session.Config{}, e.log)
}

func cmdModels(ctx context.Context, e *env, args []string) error {
	reg := offline(e).Registry
	names, err := reg.ListSupportedModels(ctx)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	}

	// gpcam models NAME...: show what each model can do
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tTHUMB\tDELETE\tUPLOAD\tCAPTURE\tPREVIEW\tPORTS")
	for _, name := range args {
		a, err := reg.AbilitiesFor(ctx, name)
		if err != nil {
			return err
		}
		ports, err := reg.SupportedPortNames(ctx, name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", a.Model,
			yesNo(a.SupportsThumbnail), yesNo(a.SupportsDelete), yesNo(a.SupportsUpload),
			yesNo(a.SupportsCaptureImage), yesNo(a.SupportsPreview), strings.Join(ports, ","))
	}
	return w.Flush()
}

func cmdPorts(ctx context.Context, e *env, _ []string) error {
	ports, err := offline(e).Discovery.ListPorts(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tKIND\tNAME")
	for _, p := range ports {
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.Path, p.Kind, p.Name)
	}
	return w.Flush()
}

func cmdDetect(ctx context.Context, e *env, _ []string) error {
	det, err := offline(e).Discovery.AutoDetect(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s\t%s\n", det.Model, det.Port)
	return nil
}

func cmdList(ctx context.Context, e *env, args []string) error {
	if err := needArgs(args, 0, 1, "ls [folder]"); err != nil {
		return err
	}
	folder := e.cam.RootPath()
	if len(args) == 1 {
		folder = args[0]
	}

	subs, err := e.cam.ListFolderNames(ctx, folder)
	if err != nil {
		return err
	}
	recs, err := e.cam.ListItemRecords(ctx, folder)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, s := range subs {
		fmt.Fprintf(w, "%s/\t\t\t\n", s)
	}
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Name, size(r.Size), modTime(r.ModTime), r.MIME)
	}
	return w.Flush()
}

func cmdTree(ctx context.Context, e *env, args []string) error {
	if err := needArgs(args, 0, 1, "tree [folder]"); err != nil {
		return err
	}
	root := e.cam.RootPath()
	if len(args) == 1 {
		root = args[0]
	}
	folders, err := e.cam.ListAllFoldersRecursive(ctx, root)
	if err != nil {
		return err
	}
	fmt.Println(root)
	for _, f := range folders {
		fmt.Println(f)
	}
	return nil
}

func find(ctx context.Context, cam *camera.Camera, path string) (model.ItemRecord, error) {
	folder, name := model.SplitPath(path)
	recs, err := cam.ListItemRecords(ctx, folder)
	if err != nil {
		return model.ItemRecord{}, err
	}
	for _, r := range recs {
		if r.Name == name {
			return r, nil
		}
	}
	e := camerr.New(camerr.NotFound, "info")
	e.Path = path
	return model.ItemRecord{}, e
}

func cmdInfo(ctx context.Context, e *env, args []string) error {
	if err := needArgs(args, 1, 1, "info path"); err != nil {
		return err
	}
	r, err := find(ctx, e.cam, args[0])
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Path:\t%s\n", r.Path())
	fmt.Fprintf(w, "MIME:\t%s\n", r.MIME)
	fmt.Fprintf(w, "Size:\t%s\n", size(r.Size))
	fmt.Fprintf(w, "Modified:\t%s\n", modTime(r.ModTime))
	if r.Width != nil && r.Height != nil {
		fmt.Fprintf(w, "Dimensions:\t%dx%d\n", *r.Width, *r.Height)
	}
	fmt.Fprintf(w, "Downloaded:\t%s\n", r.Downloaded)
	fmt.Fprintf(w, "Readable:\t%s\n", r.ReadPermission)
	fmt.Fprintf(w, "Writable:\t%s\n", r.WritePermission)
	return w.Flush()
}

func cmdGet(ctx context.Context, e *env, args []string) error {
	if err := needArgs(args, 1, 2, "get path [dest]"); err != nil {
		return err
	}
	folder, name := model.SplitPath(args[0])
	dest := name
	if len(args) == 2 {
		dest = args[1]
		if fi, err := os.Stat(dest); err == nil && fi.IsDir() {
			dest = filepath.Join(dest, name)
		}
	}
	if err := e.cam.DownloadItem(ctx, folder, name, dest); err != nil {
		return err
	}
	e.log.Info("downloaded", zap.String("path", args[0]), zap.String("dest", dest))
	return nil
}

func cmdPut(ctx context.Context, e *env, args []string) error {
	if err := needArgs(args, 2, 3, "put local folder [name]"); err != nil {
		return err
	}
	local, folder := args[0], args[1]
	name := filepath.Base(local)
	if len(args) == 3 {
		name = args[2]
	}
	rec, err := e.cam.UploadItem(ctx, folder, name, local)
	if err != nil {
		return err
	}
	fmt.Println(rec.Path())
	return nil
}

func cmdRemove(ctx context.Context, e *env, args []string) error {
	if err := needArgs(args, 1, 1, "rm path"); err != nil {
		return err
	}
	folder, name := model.SplitPath(args[0])
	return e.cam.DeleteItem(ctx, folder, name)
}

func cmdRemoveAll(ctx context.Context, e *env, args []string) error {
	if err := needArgs(args, 1, 1, "rmdir folder"); err != nil {
		return err
	}
	return e.cam.DeleteAllItems(ctx, args[0])
}

func cmdLock(locked bool) func(context.Context, *env, []string) error {
	verb := "unlock"
	if locked {
		verb = "lock"
	}
	return func(ctx context.Context, e *env, args []string) error {
		if err := needArgs(args, 1, 1, verb+" path"); err != nil {
			return err
		}
		folder, name := model.SplitPath(args[0])
		return e.cam.SetLock(ctx, folder, name, locked)
	}
}

func cmdCapture(ctx context.Context, e *env, _ []string) error {
	rec, err := e.cam.Capture(ctx)
	if err != nil {
		return err
	}
	fmt.Println(rec.Path())
	return nil
}

func writeBlob(dest string, data []byte) error {
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return camerr.WrapPath(camerr.SaveFailed, "write", dest, err)
	}
	return nil
}

func cmdPreview(ctx context.Context, e *env, args []string) error {
	if err := needArgs(args, 1, 1, "preview dest"); err != nil {
		return err
	}
	data, err := e.cam.DownloadPreview(ctx)
	if err != nil {
		return err
	}
	return writeBlob(args[0], data)
}

func cmdThumb(ctx context.Context, e *env, args []string) error {
	if err := needArgs(args, 2, 2, "thumb path dest"); err != nil {
		return err
	}
	folder, name := model.SplitPath(args[0])
	data, err := e.cam.Thumbnail(ctx, folder, name)
	if err != nil {
		return err
	}
	return writeBlob(args[1], data)
}

func cmdExif(ctx context.Context, e *env, args []string) error {
	if err := needArgs(args, 2, 2, "exif path dest"); err != nil {
		return err
	}
	folder, name := model.SplitPath(args[0])
	data, err := e.cam.ExifBlob(ctx, folder, name)
	if err != nil {
		return err
	}
	return writeBlob(args[1], data)
}

func printText(fn func(context.Context) (string, error)) func(context.Context, *env, []string) error {
	return func(ctx context.Context, _ *env, _ []string) error {
		text, err := fn(ctx)
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	}
}

func cmdSummary(ctx context.Context, e *env, args []string) error {
	return printText(e.cam.Summary)(ctx, e, args)
}

func cmdManual(ctx context.Context, e *env, args []string) error {
	return printText(e.cam.Manual)(ctx, e, args)
}

func cmdAbout(ctx context.Context, e *env, args []string) error {
	return printText(e.cam.About)(ctx, e, args)
}

func cmdSpace(ctx context.Context, e *env, _ []string) error {
	sp, err := e.cam.FreeSpace(ctx)
	if err != nil {
		return err
	}
	fmt.Println(spaceLine(sp))
	return nil
}

// spaceLine leaves out the used figure when the device reports more free
// space than capacity.
func spaceLine(sp camera.Space) string {
	line := fmt.Sprintf("capacity %d KiB, free %d KiB", sp.CapacityKB, sp.AvailableKB)
	if sp.AvailableKB <= sp.CapacityKB {
		line += fmt.Sprintf(", used %d KiB", sp.CapacityKB-sp.AvailableKB)
	}
	return line
}

func size(n *int64) string {
	if n == nil {
		return "?"
	}
	return fmt.Sprintf("%d", *n)
}

func modTime(t *time.Time) string {
	if t == nil {
		return "?"
	}
	return t.Local().Format(time.DateTime)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
