package etl

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"courtetl/internal/codec"
	"courtetl/internal/config"
	"courtetl/internal/datasource/file"
	"courtetl/internal/frame"
	"courtetl/internal/logger"
	csvparser "courtetl/internal/parser/csv"
	"courtetl/internal/sink"
	_ "courtetl/internal/storage/all"
	"courtetl/internal/transformer"
)

const docketsCSV = "id,court_id,case_name\n" +
	"1,scotus,A v. B\n" +
	"2,nysd,C v. D\n" +
	"3,ca9,E v. F\n" +
	"4,txnd,G v. H\n" +
	"5,ca1,I v. J\n"

// writeBz2 stores body bzip2-compressed under dir and returns its path.
func writeBz2(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw, err := codec.NewWriter(codec.Bzip2, f)
	if err != nil {
		t.Fatalf("writer: %v", err)
	}
	if _, err := io.WriteString(zw, body); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return path
}

func readOutput(t *testing.T, path string) *frame.Frame {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	rc, err := codec.NewReader(codec.FromName(path), f)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	defer rc.Close()
	out, err := csvparser.ReadAll(context.Background(), rc, csvparser.DefaultOptions())
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	return out
}

func column(t *testing.T, f *frame.Frame, name string) []string {
	t.Helper()
	c, err := f.ColumnIndex(name)
	if err != nil {
		t.Fatalf("column: %v", err)
	}
	var out []string
	for i := 0; i < f.Len(); i++ {
		out = append(out, f.Row(i)[c].S)
	}
	return out
}

func newProcessor(src, out string, chunk int) *Processor {
	return &Processor{
		Source:    file.NewLocal(src),
		SourceURI: src,
		Sink:      sink.NewLocal(out),
		ChunkSize: chunk,
		Parser:    csvparser.DefaultOptions(),
		Job:       "judges",
		Step:      "dockets",
	}
}

func TestRunParseDocketFilter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := writeBz2(t, dir, "dockets.csv.bz2", docketsCSV)
	out := filepath.Join(dir, "out", "cleaned_dockets.csv.bz2")

	var logs bytes.Buffer
	p := newProcessor(src, out, 2)
	p.Log = logger.NewWithFlags(&logs, logger.LevelInfo, 0)

	sum, err := p.RunParse(context.Background(), transformer.DocketFilter(nil))
	if err != nil {
		t.Fatalf("RunParse: %v", err)
	}
	if sum.Chunks != 3 || sum.RowsRead != 5 || sum.RowsWritten != 3 {
		t.Fatalf("summary = %+v", sum)
	}
	if sum.Bytes == 0 || sum.Digest == 0 {
		t.Fatalf("summary missing size or digest: %+v", sum)
	}

	got := readOutput(t, out)
	if diff := cmp.Diff([]string{"Unnamed: 0", "id", "court_id", "case_name"}, got.Columns()); diff != "" {
		t.Fatalf("columns (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"0", "2", "4"}, column(t, got, "Unnamed: 0")); diff != "" {
		t.Fatalf("index (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"scotus", "ca9", "ca1"}, column(t, got, "court_id")); diff != "" {
		t.Fatalf("courts (-want +got):\n%s", diff)
	}

	for _, want := range []string{"Processing row: 0\n", "Processing row: 2\n", "Processing row: 4\n"} {
		if !strings.Contains(logs.String(), want) {
			t.Errorf("log missing %q:\n%s", want, logs.String())
		}
	}
}

func TestRunParseIsIdempotentAndChunkTransparent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var b strings.Builder
	b.WriteString("id,court_id\n")
	courts := []string{"scotus", "nysd", "ca2", "cafc", "txnd"}
	for i := 0; i < 250; i++ {
		b.WriteString(strings.Join([]string{strconv.Itoa(i), courts[i%len(courts)]}, ",") + "\n")
	}
	src := writeBz2(t, dir, "dockets.csv.bz2", b.String())

	var digests []uint64
	var bodies [][]byte
	for i, size := range []int{50, 100, 50, 250} {
		out := filepath.Join(dir, "run"+strconv.Itoa(i)+".csv.bz2")
		sum, err := newProcessor(src, out, size).RunParse(context.Background(), transformer.DocketFilter(nil))
		if err != nil {
			t.Fatalf("RunParse(size=%d): %v", size, err)
		}
		digests = append(digests, sum.Digest)
		raw, err := os.ReadFile(out)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		bodies = append(bodies, raw)
	}
	for i := 1; i < len(digests); i++ {
		if digests[i] != digests[0] {
			t.Fatalf("digest %d = %x, want %x", i, digests[i], digests[0])
		}
		if !bytes.Equal(bodies[i], bodies[0]) {
			t.Fatalf("output %d differs", i)
		}
	}
}

type trackingSource struct {
	body   string
	closed bool
}

func (s *trackingSource) Open(context.Context) (io.ReadCloser, error) {
	return &trackingReader{Reader: strings.NewReader(s.body), src: s}, nil
}

type trackingReader struct {
	io.Reader
	src *trackingSource
}

func (r *trackingReader) Close() error {
	r.src.closed = true
	return nil
}

func TestFailedTransformLeavesNoOutputAndClosesSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	out := filepath.Join(dir, "cleaned.csv.bz2")
	src := &trackingSource{body: docketsCSV}
	boom := errors.New("boom")
	calls := 0
	fn := func(chunk *frame.Frame) (*frame.Frame, error) {
		calls++
		if calls == 2 {
			return nil, boom
		}
		return chunk, nil
	}

	p := &Processor{Source: src, SourceURI: "dockets.csv", Sink: sink.NewLocal(out), ChunkSize: 2, Parser: csvparser.DefaultOptions()}
	_, err := p.RunParse(context.Background(), fn)
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	if !src.closed {
		t.Fatal("source left open")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("output exists after failure: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("leftover files: %v", entries)
	}
}

func TestMissingColumnFailsRun(t *testing.T) {
	t.Parallel()

	src := &trackingSource{body: "id,judges\n1,x\n"}
	p := &Processor{Source: src, SourceURI: "clusters.csv", Sink: sink.NewLocal(filepath.Join(t.TempDir(), "o.csv")), Parser: csvparser.DefaultOptions()}
	_, err := p.RunParse(context.Background(), transformer.DocketFilter(nil))
	if !errors.Is(err, frame.ErrColumnNotFound) {
		t.Fatalf("want ErrColumnNotFound, got %v", err)
	}
	if !src.closed {
		t.Fatal("source left open")
	}
}

func TestChunkDataHeaderOnlySourceKeepsTransformColumns(t *testing.T) {
	t.Parallel()

	authors := frame.New("id", "slug", "political_party")
	p := &Processor{Source: &trackingSource{body: "id,plain_text,author_id\n"}, SourceURI: "opinions.csv", Parser: csvparser.DefaultOptions()}
	got, err := p.ChunkData(context.Background(), transformer.OpinionFilter(logger.NopLogger, authors))
	if err != nil {
		t.Fatalf("ChunkData: %v", err)
	}
	if got.Len() != 0 {
		t.Fatalf("rows = %d", got.Len())
	}
	want := []string{"id_x", "plain_text", "author_id", "id_y", "slug", "political_party"}
	if diff := cmp.Diff(want, got.Columns()); diff != "" {
		t.Fatalf("columns (-want +got):\n%s", diff)
	}
}

func TestChunkDataHonoursCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &trackingSource{body: docketsCSV}
	p := &Processor{Source: src, SourceURI: "dockets.csv", Parser: csvparser.DefaultOptions()}
	if _, err := p.ChunkData(ctx, transformer.DocketFilter(nil)); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if !src.closed {
		t.Fatal("source left open")
	}
}

func TestRunParsePlainOutputAndMirror(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	out := filepath.Join(dir, "cleaned_dockets.csv")
	p := &Processor{
		Source:      &trackingSource{body: docketsCSV},
		SourceURI:   "dockets.csv",
		Sink:        sink.NewLocal(out),
		Compression: codec.None,
		Parser:      csvparser.DefaultOptions(),
		Storage: &config.Storage{Kind: "sqlite", DB: config.DBConfig{
			DSN: filepath.Join(dir, "judges.db"), Table: "dockets", AutoCreateTable: true,
		}},
	}
	sum, err := p.RunParse(context.Background(), transformer.DocketFilter([]string{"nysd"}))
	if err != nil {
		t.Fatalf("RunParse: %v", err)
	}
	if sum.Mirrored != 1 {
		t.Fatalf("mirrored = %d, want 1", sum.Mirrored)
	}
	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if want := ",id,court_id,case_name\n1,2,nysd,C v. D\n"; string(raw) != want {
		t.Fatalf("output %q, want %q", raw, want)
	}
	if sum.Bytes != int64(len(raw)) {
		t.Fatalf("bytes = %d, want %d", sum.Bytes, len(raw))
	}
}

func TestFailedMirrorLeavesNoOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	out := filepath.Join(dir, "cleaned_dockets.csv.bz2")
	p := &Processor{
		Source:    &trackingSource{body: docketsCSV},
		SourceURI: "dockets.csv",
		Sink:      sink.NewLocal(out),
		Parser:    csvparser.DefaultOptions(),
		Storage: &config.Storage{Kind: "nosuchdb", DB: config.DBConfig{
			DSN: "nowhere", Table: "dockets",
		}},
	}
	_, err := p.RunParse(context.Background(), transformer.DocketFilter(nil))
	if err == nil || !strings.Contains(err.Error(), "mirror into dockets") {
		t.Fatalf("want mirror error, got %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("output published after failed mirror: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("leftover files: %v", entries)
	}
}

func csvFrame(t *testing.T, body string) *frame.Frame {
	t.Helper()
	f, err := csvparser.ReadAll(context.Background(), strings.NewReader(body), csvparser.DefaultOptions())
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	return f
}

// cells returns every row without the leading index column.
func cells(f *frame.Frame) [][]string {
	out := make([][]string, 0, f.Len())
	for i := 0; i < f.Len(); i++ {
		row := f.Row(i)[1:]
		s := make([]string, len(row))
		for j, v := range row {
			s[j] = v.S
		}
		out = append(out, s)
	}
	return out
}

func TestJoinStepsAreChunkTransparent(t *testing.T) {
	t.Parallel()

	// Author 7 has two affiliations and cluster 10 appears twice, so both
	// joins fan out; the repeated keys straddle the 2-row chunk boundaries.
	authors := csvFrame(t, "id,slug,political_party\n"+
		"7,judge-seven,d\n"+
		"7,judge-seven,r\n"+
		"8,judge-eight,r\n")
	dockets := csvFrame(t, "id,court_id\n"+
		"100,scotus\n"+
		"100,ca1\n"+
		"102,ca9\n")
	clusters := csvFrame(t, "id_x,slug,date_filed,case_name,court_id\n"+
		"10,a-v-b,2001-01-01,A v. B,ca1\n"+
		"10,a-v-b-2,2001-01-02,A v. B II,ca1\n"+
		"11,c-v-d,2002-02-02,C v. D,scotus\n"+
		"12,e-v-f,2003-03-03,E v. F,ca9\n")

	tests := []struct {
		name     string
		body     string
		fn       transformer.Func
		wantRows int
	}{
		{
			name: "opinion filter",
			body: "id,plain_text,author_id\n" +
				"1,t1,7\n" +
				"2,,8\n" +
				"3,t3,\n" +
				"4,t4,8\n" +
				"5,t5,7\n" +
				"6,t6,9\n",
			fn:       transformer.OpinionFilter(logger.NopLogger, authors),
			wantRows: 5,
		},
		{
			name: "cluster filter",
			body: "id,docket_id,judges,case_name\n" +
				"1,100,Roberts,A\n" +
				"2,101,,B\n" +
				"3,100,Alito,C\n" +
				"4,102,Kagan,D\n" +
				"5,103,Thomas,E\n",
			fn:       transformer.ClusterFilter(logger.NopLogger, dockets),
			wantRows: 5,
		},
		{
			name: "opinion join",
			body: "opinion_ref,cluster_id,author_id,plain_text\n" +
				"o1,11,8,text one\n" +
				"o2,10,7,text two\n" +
				"o3,10,8,text three\n" +
				"o4,12,7,text four\n" +
				"o5,99,7,orphan\n",
			fn:       transformer.OpinionJoiner(logger.NopLogger, clusters, authors, nil),
			wantRows: 9,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			src := writeBz2(t, dir, "in.csv.bz2", tt.body)

			var (
				first   *frame.Frame
				digests []uint64
			)
			sizes := []int{2, 4, 100, 2}
			for i, size := range sizes {
				out := filepath.Join(dir, "out"+strconv.Itoa(i)+".csv.bz2")
				sum, err := newProcessor(src, out, size).RunParse(context.Background(), tt.fn)
				if err != nil {
					t.Fatalf("RunParse(size=%d): %v", size, err)
				}
				digests = append(digests, sum.Digest)
				got := readOutput(t, out)
				if got.Len() != tt.wantRows {
					t.Fatalf("size %d: rows = %d, want %d", size, got.Len(), tt.wantRows)
				}
				if first == nil {
					first = got
					continue
				}
				if diff := cmp.Diff(first.Columns(), got.Columns()); diff != "" {
					t.Fatalf("size %d columns (-want +got):\n%s", size, diff)
				}
				if diff := cmp.Diff(cells(first), cells(got)); diff != "" {
					t.Fatalf("size %d rows (-want +got):\n%s", size, diff)
				}
			}
			if digests[len(digests)-1] != digests[0] {
				t.Fatalf("rerun digest %x, want %x", digests[len(digests)-1], digests[0])
			}
		})
	}
}
