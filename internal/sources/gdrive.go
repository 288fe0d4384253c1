package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/digimosa/hawk-scan/internal/config"
	"github.com/digimosa/hawk-scan/internal/exclusion"
	"github.com/digimosa/hawk-scan/internal/models"
)

// ExportSuffix is appended to Google documents exported to PDF for
// scanning. Reports strip it again.
const ExportSuffix = "-runtime.pdf"

const folderMime = "application/vnd.google-apps.folder"

// exportable Google Workspace types; other google-apps types have no
// content to download.
var exportable = map[string]bool{
	"application/vnd.google-apps.document":     true,
	"application/vnd.google-apps.spreadsheet":  true,
	"application/vnd.google-apps.presentation": true,
	"application/vnd.google-apps.drawing":      true,
	"application/vnd.google-apps.script":       true,
}

var errStopListing = errors.New("stop listing")

func runDrive(ctx context.Context, env *Env, source string, profiles map[string]config.DriveProfile) {
	for _, name := range profileNames(profiles) {
		p := profiles[name]
		if err := scanDrive(ctx, env, source, name, p); err != nil {
			env.fail(source, name, err)
		}
	}
}

// scanDrive walks one drive for gdrive profiles, and the drive of every
// impersonated user for gdrive_workspace profiles.
func scanDrive(ctx context.Context, env *Env, source, profile string, p config.DriveProfile) error {
	if p.CredentialsFile == "" {
		return fmt.Errorf("credentials_file is required")
	}
	creds, err := os.ReadFile(p.CredentialsFile)
	if err != nil {
		return err
	}
	cache, err := newRemoteCache(env.CacheDir, source, p.Cache)
	if err != nil {
		return err
	}
	filter := exclusion.NewFilter(p.ExcludeExtensions, p.ExcludePatterns)

	if source == models.SourceGDrive {
		svc, err := drive.NewService(ctx, option.WithCredentialsJSON(creds), option.WithScopes(drive.DriveReadonlyScope))
		if err != nil {
			return fmt.Errorf("failed to connect to Google Drive: %w", err)
		}
		b := &driveBucket{svc: svc, name: "My Drive", root: "root"}
		if p.FolderName != "" {
			if err := b.enter(ctx, p.FolderName); err != nil {
				return err
			}
		}
		return scanBucket(ctx, env, source, profile, b, filter, cache)
	}

	users := p.ImpersonateUsers
	if len(users) == 0 {
		users = []string{""}
	}
	for _, user := range users {
		client, err := impersonate(ctx, creds, user)
		if err != nil {
			return err
		}
		svc, err := drive.NewService(ctx, option.WithHTTPClient(client))
		if err != nil {
			return fmt.Errorf("failed to connect to Google Drive: %w", err)
		}
		b := &driveBucket{svc: svc, name: user, root: "root", owner: user}
		if err := scanBucket(ctx, env, source, profile, b, filter, cache); err != nil {
			env.fail(source, profile, fmt.Errorf("user %s: %w", user, err))
		}
	}
	return nil
}

// impersonate returns a client acting as user through domain-wide
// delegation of a service account; an empty user acts as the account itself.
func impersonate(ctx context.Context, creds []byte, user string) (*http.Client, error) {
	conf, err := google.JWTConfigFromJSON(creds, drive.DriveReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("invalid service account credentials: %w", err)
	}
	conf.Subject = user
	return conf.Client(ctx), nil
}

// driveBucket presents a drive as a bucket. Keys are slash-joined folder
// paths below the starting folder.
type driveBucket struct {
	svc    *drive.Service
	name   string
	root   string
	prefix string
	// owner limits the top level to files owned by that user.
	owner string

	files sync.Map // key -> *drive.File
}

func (b *driveBucket) Name() string { return b.name }

// enter moves the starting point to the top-level folder called name.
func (b *driveBucket) enter(ctx context.Context, name string) error {
	q := fmt.Sprintf("'root' in parents and name = %s and mimeType = '%s' and trashed = false", quote(name), folderMime)
	list, err := b.svc.Files.List().Q(q).Fields("files(id, name)").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to list files: %w", err)
	}
	if len(list.Files) == 0 {
		return fmt.Errorf("folder %s not found", name)
	}
	b.root = list.Files[0].Id
	b.prefix = name
	return nil
}

func (b *driveBucket) List(ctx context.Context, fn func(object) bool) error {
	_, err := b.walk(ctx, b.root, b.prefix, b.owner, fn)
	return err
}

func (b *driveBucket) walk(ctx context.Context, parent, prefix, owner string, fn func(object) bool) (bool, error) {
	q := fmt.Sprintf("%s in parents and trashed = false", quote(parent))
	if owner != "" {
		q += fmt.Sprintf(" and %s in owners", quote(owner))
	}

	var folders []*drive.File
	err := b.svc.Files.List().Q(q).
		Fields("nextPageToken, files(id, name, mimeType, version)").
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				if f.MimeType == folderMime {
					folders = append(folders, f)
					continue
				}
				name := f.Name
				if exportable[f.MimeType] {
					name += ExportSuffix
				} else if strings.HasPrefix(f.MimeType, "application/vnd.google-apps.") {
					continue
				}
				key := path.Join(prefix, name)
				b.files.Store(key, f)
				if !fn(object{Key: key, ETag: strconv.FormatInt(f.Version, 10)}) {
					return errStopListing
				}
			}
			return nil
		})
	if errors.Is(err, errStopListing) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to list files: %w", err)
	}

	for _, dir := range folders {
		more, err := b.walk(ctx, dir.Id, path.Join(prefix, dir.Name), "", fn)
		if err != nil || !more {
			return more, err
		}
	}
	return true, nil
}

func (b *driveBucket) Download(ctx context.Context, key string, w io.Writer) error {
	v, ok := b.files.Load(key)
	if !ok {
		return fmt.Errorf("unknown file %s", key)
	}
	f := v.(*drive.File)

	var (
		resp *http.Response
		err  error
	)
	if exportable[f.MimeType] {
		resp, err = b.svc.Files.Export(f.Id, "application/pdf").Context(ctx).Download()
	} else {
		resp, err = b.svc.Files.Get(f.Id).Context(ctx).Download()
	}
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, err = io.Copy(w, resp.Body)
	return err
}

// quote renders s as a Drive query string literal.
func quote(s string) string {
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s) + "'"
}
