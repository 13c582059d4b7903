package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/m2ix4i/korrektor/internal/analyzer"
	"github.com/m2ix4i/korrektor/internal/config"
	"github.com/m2ix4i/korrektor/pkg/annotate"
)

const bodyText = "Large Language Models open new possibilities for text analysis."

// buildTestDocx assembles a one-paragraph document archive in memory.
func buildTestDocx(t *testing.T) []byte {
	t.Helper()

	parts := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
			`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
			`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
			`<Default Extension="xml" ContentType="application/xml"/>` +
			`</Types>`,
		"_rels/.rels": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
			`</Relationships>`,
		"word/_rels/document.xml.rels": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`,
		"word/document.xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
			`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
			`<w:body><w:p><w:r><w:t>` + bodyText + `</w:t></w:r></w:p></w:body></w:document>`,
	}

	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	for name, content := range parts {
		f, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestServer(t *testing.T, az analyzer.Analyzer) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	it := annotate.NewIntegrator(cfg.Author.Name, cfg.Author.Initials)
	srv := httptest.NewServer(New(cfg, it, az).Handler())
	t.Cleanup(srv.Close)
	return srv
}

// submitJob uploads a document and returns the accepted job record.
func submitJob(t *testing.T, srv *httptest.Server, fields map[string]string) Job {
	t.Helper()

	buf := new(bytes.Buffer)
	mw := multipart.NewWriter(buf)
	fw, err := mw.CreateFormFile("document", "thesis.docx")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(buildTestDocx(t)); err != nil {
		t.Fatal(err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Post(srv.URL+"/api/v1/jobs", mw.FormDataContentType(), buf)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("submit status = %d: %s", resp.StatusCode, raw)
	}

	var job Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		t.Fatal(err)
	}
	if job.ID == "" || job.State != JobQueued {
		t.Fatalf("job = %+v, want queued with an ID", job)
	}
	return job
}

// waitForJob polls the status endpoint until the job leaves the queue.
func waitForJob(t *testing.T, srv *httptest.Server, id string) Job {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(srv.URL + "/api/v1/jobs/" + id)
		if err != nil {
			t.Fatal(err)
		}
		var job Job
		err = json.NewDecoder(resp.Body).Decode(&job)
		resp.Body.Close()
		if err != nil {
			t.Fatal(err)
		}
		if job.State == JobDone || job.State == JobFailed {
			return job
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("job did not finish in time")
	return Job{}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestSubmitWithSuggestions(t *testing.T) {
	srv := newTestServer(t, nil)

	suggestions, _ := json.Marshal([]annotate.Suggestion{{
		OriginalText:  bodyText,
		SuggestedText: "Large Language Models create new possibilities for text analysis.",
		Reason:        "Word choice",
		Category:      annotate.CategoryStyle,
		Confidence:    0.8,
	}})
	job := submitJob(t, srv, map[string]string{"suggestions": string(suggestions)})

	done := waitForJob(t, srv, job.ID)
	if done.State != JobDone {
		t.Fatalf("job state = %s (error %q), want done", done.State, done.Error)
	}
	if done.Report == nil || done.Report.Matched != 1 {
		t.Fatalf("report = %+v, want one match", done.Report)
	}

	resp, err := http.Get(srv.URL + "/api/v1/jobs/" + job.ID + "/download")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download status = %d, want 200", resp.StatusCode)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "annotated_thesis.docx") {
		t.Errorf("Content-Disposition = %q, want annotated filename", cd)
	}

	archive, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		t.Fatalf("downloaded file is not an archive: %v", err)
	}
	found := false
	for _, f := range zr.File {
		if f.Name == "word/comments.xml" {
			found = true
		}
	}
	if !found {
		t.Error("annotated document must carry a comments part")
	}
}

func TestSubmitWithAnalyzer(t *testing.T) {
	az := &analyzer.Static{Suggestions: []annotate.Suggestion{{
		OriginalText:  bodyText,
		SuggestedText: "an improved sentence",
		Category:      annotate.CategoryClarity,
		Confidence:    0.9,
	}}}
	srv := newTestServer(t, az)

	job := submitJob(t, srv, map[string]string{"analyze": "true"})
	done := waitForJob(t, srv, job.ID)
	if done.State != JobDone {
		t.Fatalf("job state = %s (error %q), want done", done.State, done.Error)
	}
	if done.Report.Matched != 1 {
		t.Errorf("matched = %d, want 1", done.Report.Matched)
	}
}

// TestSubmitConcurrentStateUpdates hammers the submit path while workers
// mutate job records. The submit response must be a snapshot taken before
// the worker starts, never the live store record; the race detector flags
// any encode of a record a worker is updating.
func TestSubmitConcurrentStateUpdates(t *testing.T) {
	srv := newTestServer(t, nil)

	suggestions, _ := json.Marshal([]annotate.Suggestion{{
		OriginalText:  bodyText,
		SuggestedText: "a concurrent rewording of the sentence",
		Category:      annotate.CategoryStyle,
		Confidence:    0.9,
	}})

	ids := make([]string, 50)
	for i := range ids {
		ids[i] = submitJob(t, srv, map[string]string{"suggestions": string(suggestions)}).ID
	}

	for _, id := range ids {
		if done := waitForJob(t, srv, id); done.State != JobDone {
			t.Errorf("job %s state = %s (error %q), want done", id, done.State, done.Error)
		}
	}
}

func TestSubmitRejectsMissingInput(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name   string
		fields map[string]string
	}{
		{"no suggestions and no analyze", nil},
		{"analyze without analyzer", map[string]string{"analyze": "true"}},
		{"broken suggestions json", map[string]string{"suggestions": "{not json"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)
			mw := multipart.NewWriter(buf)
			fw, _ := mw.CreateFormFile("document", "thesis.docx")
			fw.Write(buildTestDocx(t))
			for k, v := range tt.fields {
				mw.WriteField(k, v)
			}
			mw.Close()

			resp, err := http.Post(srv.URL+"/api/v1/jobs", mw.FormDataContentType(), buf)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestStatusUnknownJob(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/api/v1/jobs/no-such-job")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestDownloadBeforeDone(t *testing.T) {
	srv := newTestServer(t, &blockingAnalyzer{release: make(chan struct{})})

	job := submitJob(t, srv, map[string]string{"analyze": "true"})

	resp, err := http.Get(srv.URL + "/api/v1/jobs/" + job.ID + "/download")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

// blockingAnalyzer never returns until released, pinning a job in flight.
type blockingAnalyzer struct {
	release chan struct{}
}

func (b *blockingAnalyzer) Analyze(ctx context.Context, text string) ([]annotate.Suggestion, error) {
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return nil, fmt.Errorf("analyzer stopped")
}
