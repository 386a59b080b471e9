package git

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDiff = `diff --git a/src/Unit1.pas b/src/Unit1.pas
index 3b18e51..a9c2f4d 100644
--- a/src/Unit1.pas
+++ b/src/Unit1.pas
@@ -10,0 +11,2 @@ procedure TForm1.FormCreate(Sender: TObject);
+  Helper;
+  LoadSettings;
@@ -20 +22 @@ end;
-  SaveAll;
+  SaveAll();
@@ -30,3 +31,0 @@ end;
-  a;
-  b;
-  c;
diff --git a/src/Old.pas b/src/Old.pas
deleted file mode 100644
--- a/src/Old.pas
+++ /dev/null
@@ -1,2 +0,0 @@
-unit Old;
-end.
diff --git a/src/New.pas b/src/New.pas
new file mode 100644
--- /dev/null
+++ b/src/New.pas
@@ -0,0 +1,2 @@
+unit New;
+end.
`

func TestParseDiff(t *testing.T) {
	changes, err := parseDiff(strings.NewReader(sampleDiff))
	require.NoError(t, err)
	require.Len(t, changes, 2)

	assert.Equal(t, "src/Unit1.pas", changes[0].Path)
	assert.Equal(t, []int{11, 12, 22, 31}, changes[0].ChangedLines)

	assert.Equal(t, "src/New.pas", changes[1].Path)
	assert.Equal(t, []int{1, 2}, changes[1].ChangedLines)
}

func TestParseDiff_Empty(t *testing.T) {
	changes, err := parseDiff(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, changes)
}
