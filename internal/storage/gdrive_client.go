package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	apperrors "github.com/mshattori/transcriber-web-app/internal/errors"
)

const folderMimeType = "application/vnd.google-apps.folder"

// DriveClient mirrors completed job artifacts to a Google Drive folder.
// Upload failures never fail the job; the caller logs and moves on.
type DriveClient struct {
	service    *drive.Service
	folderName string
	folderID   string
}

// NewDriveClient builds a client from an OAuth credentials file and a cached
// token. The token must already exist; this server has no interactive
// consent flow.
func NewDriveClient(ctx context.Context, credentialsFile, tokenFile, folderName string) (*DriveClient, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, apperrors.Configuration("unable to read drive credentials", err)
	}

	config, err := google.ConfigFromJSON(b, drive.DriveFileScope)
	if err != nil {
		return nil, apperrors.Configuration("unable to parse drive credentials", err)
	}

	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, apperrors.Configuration("drive token not found, run the authorization helper first", err)
	}

	srv, err := drive.NewService(ctx, option.WithHTTPClient(newRefreshingClient(ctx, config, tok, tokenFile)))
	if err != nil {
		return nil, apperrors.Configuration("unable to create drive service", err)
	}

	dc := &DriveClient{service: srv, folderName: folderName}
	if err := dc.ensureRootFolder(); err != nil {
		return nil, err
	}
	return dc, nil
}

func newRefreshingClient(ctx context.Context, config *oauth2.Config, tok *oauth2.Token, tokenFile string) *http.Client {
	source := config.TokenSource(ctx, tok)
	return oauth2.NewClient(ctx, &savingTokenSource{src: source, path: tokenFile, last: tok})
}

// savingTokenSource persists refreshed tokens so restarts keep working.
type savingTokenSource struct {
	src  oauth2.TokenSource
	path string
	last *oauth2.Token
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != s.last.AccessToken {
		s.last = tok
		saveToken(s.path, tok)
	}
	return tok, nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

func saveToken(path string, token *oauth2.Token) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	json.NewEncoder(f).Encode(token)
}

func (dc *DriveClient) ensureRootFolder() error {
	query := fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false", dc.folderName, folderMimeType)
	r, err := dc.service.Files.List().Q(query).Spaces("drive").Fields("files(id, name)").Do()
	if err != nil {
		return apperrors.Network("unable to search for drive folder", err)
	}
	if len(r.Files) > 0 {
		dc.folderID = r.Files[0].Id
		return nil
	}

	folder := &drive.File{Name: dc.folderName, MimeType: folderMimeType}
	file, err := dc.service.Files.Create(folder).Fields("id").Do()
	if err != nil {
		return apperrors.Network("unable to create drive folder", err)
	}
	dc.folderID = file.Id
	return nil
}

// UploadJobDir uploads every artifact in jobDir to <root>/<date>/<job-id>/
// and returns a link to the uploaded job folder.
func (dc *DriveClient) UploadJobDir(jobID, jobDir string) (string, error) {
	dateID, err := dc.findOrCreateFolder(time.Now().Format("2006-01-02"), dc.folderID)
	if err != nil {
		return "", err
	}
	jobFolderID, err := dc.findOrCreateFolder(jobID, dateID)
	if err != nil {
		return "", err
	}

	entries, err := os.ReadDir(jobDir)
	if err != nil {
		return "", apperrors.FileIO("failed to read job directory", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		f, err := os.Open(filepath.Join(jobDir, entry.Name()))
		if err != nil {
			return "", apperrors.FileIO("failed to open artifact for upload", err)
		}
		meta := &drive.File{Name: entry.Name(), Parents: []string{jobFolderID}}
		_, err = dc.service.Files.Create(meta).Media(f).Do()
		f.Close()
		if err != nil {
			return "", apperrors.Network(fmt.Sprintf("failed to upload %s", entry.Name()), err)
		}
	}

	return fmt.Sprintf("https://drive.google.com/drive/folders/%s", jobFolderID), nil
}

func (dc *DriveClient) findOrCreateFolder(name, parentID string) (string, error) {
	query := fmt.Sprintf("name='%s' and '%s' in parents and mimeType='%s' and trashed=false",
		name, parentID, folderMimeType)
	r, err := dc.service.Files.List().Q(query).Spaces("drive").Fields("files(id)").Do()
	if err != nil {
		return "", apperrors.Network("drive folder lookup failed", err)
	}
	if len(r.Files) > 0 {
		return r.Files[0].Id, nil
	}

	folder := &drive.File{Name: name, MimeType: folderMimeType, Parents: []string{parentID}}
	file, err := dc.service.Files.Create(folder).Fields("id").Do()
	if err != nil {
		return "", apperrors.Network("drive folder create failed", err)
	}
	return file.Id, nil
}
