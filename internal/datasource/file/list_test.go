package file

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReadList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		want    []string
		wantErr string
	}{
		{
			name: "comments and blanks",
			body: "# appellate\nscotus\n\n   ca1  \n\tcadc # D.C. Circuit\n",
			want: []string{"scotus", "ca1", "cadc"},
		},
		{
			name: "empty file",
			body: "",
			want: nil,
		},
		{
			name:    "two ids on a line",
			body:    "scotus\nca1 ca2\n",
			wantErr: ":2: want one id per line",
		},
		{
			name:    "comma separated",
			body:    "scotus,ca1\n",
			wantErr: ":1:",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ReadList(writeExport(t, "courts.txt", tt.body))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadList: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestReadListMissingFile(t *testing.T) {
	t.Parallel()

	_, err := ReadList("no-such-courts.txt")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("want ErrNotExist, got %v", err)
	}
}
