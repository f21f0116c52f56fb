package automation

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/accountsync-cli/internal/model"
)

// fakeAutomator logs every call and answers from configurable tables.
type fakeAutomator struct {
	calls       []string
	failClicks  map[string]int // selector -> number of clicks to fail before succeeding
	missing     map[string]bool
	navigateErr error
	sendKeysErr error
	typed       map[string]string
}

func newFakeAutomator() *fakeAutomator {
	return &fakeAutomator{
		failClicks: map[string]int{},
		missing:    map[string]bool{},
		typed:      map[string]string{},
	}
}

func (f *fakeAutomator) Navigate(ctx context.Context, url string) error {
	f.calls = append(f.calls, "navigate:"+url)
	return f.navigateErr
}

func (f *fakeAutomator) WaitFor(ctx context.Context, selector string, timeout time.Duration) bool {
	f.calls = append(f.calls, "waitfor:"+selector)
	return !f.missing[selector]
}

func (f *fakeAutomator) Click(ctx context.Context, selector string) bool {
	f.calls = append(f.calls, "click:"+selector)
	if f.missing[selector] {
		return false
	}
	if n := f.failClicks[selector]; n > 0 {
		f.failClicks[selector] = n - 1
		return false
	}
	return true
}

func (f *fakeAutomator) SendKeys(ctx context.Context, selector, text string) error {
	f.calls = append(f.calls, "sendkeys:"+selector)
	if f.sendKeysErr != nil {
		return f.sendKeysErr
	}
	f.typed[selector] = text
	return nil
}

func (f *fakeAutomator) GetText(ctx context.Context, selector string) (string, error) {
	f.calls = append(f.calls, "gettext:"+selector)
	return "", nil
}

func (f *fakeAutomator) GetAttribute(ctx context.Context, selector, name string) (string, error) {
	f.calls = append(f.calls, "getattr:"+selector)
	return "", nil
}

func testUploader(f *fakeAutomator) *Uploader {
	u := NewUploader(f, DefaultSelectors(), "https://crm.example.com/crm/org1/tab/Accounts", UploaderOptions{
		Settle:     time.Millisecond,
		UploadWait: time.Millisecond,
	})
	u.sleep = func(ctx context.Context, d time.Duration) {}
	return u
}

func asset(t *testing.T, slot int) model.ImageAsset {
	t.Helper()
	path := filepath.Join(t.TempDir(), "image.jpg")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return model.ImageAsset{Slot: slot, Path: path, MIME: "image/jpeg"}
}

func TestAttachImages_SkipsOnEmpty(t *testing.T) {
	f := newFakeAutomator()
	u := testUploader(f)

	err := u.AttachImages(context.Background(), model.RecordRef{RecordID: "123", LayoutID: "L1"}, nil)
	require.NoError(t, err)
	assert.Empty(t, f.calls, "edit session must never open with nothing to attach")
}

func TestAttachImages_HappyPath(t *testing.T) {
	f := newFakeAutomator()
	u := testUploader(f)
	sel := DefaultSelectors()

	err := u.AttachImages(context.Background(),
		model.RecordRef{RecordID: "123", LayoutID: "L1"},
		[]model.ImageAsset{asset(t, 0), asset(t, 2)},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"navigate:https://crm.example.com/crm/org1/tab/Accounts/123/edit?layoutId=L1",
		"click:" + sel.SlotTrigger(1),
		"waitfor:" + sel.FileInput,
		"sendkeys:" + sel.FileInput,
		"click:" + sel.AttachButton,
		"click:" + sel.SlotTrigger(3),
		"waitfor:" + sel.FileInput,
		"sendkeys:" + sel.FileInput,
		"click:" + sel.AttachButton,
		"click:" + sel.SaveButton,
	}, f.calls)

	// The file input receives an absolute path.
	assert.True(t, filepath.IsAbs(f.typed[sel.FileInput]))
}

func TestAttachImages_FallbackToPanelTrigger(t *testing.T) {
	f := newFakeAutomator()
	sel := DefaultSelectors()
	f.failClicks[sel.SlotTrigger(1)] = 1 // first click fails, retry succeeds
	u := testUploader(f)

	err := u.AttachImages(context.Background(),
		model.RecordRef{RecordID: "123", LayoutID: "L1"},
		[]model.ImageAsset{asset(t, 0)},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"navigate:https://crm.example.com/crm/org1/tab/Accounts/123/edit?layoutId=L1",
		"click:" + sel.SlotTrigger(1),
		"click:" + sel.PanelTrigger,
		"click:" + sel.SlotTrigger(1),
		"waitfor:" + sel.FileInput,
		"sendkeys:" + sel.FileInput,
		"click:" + sel.AttachButton,
		"click:" + sel.SaveButton,
	}, f.calls)
}

func TestAttachImages_AbandonsSlotWithoutFileInput(t *testing.T) {
	f := newFakeAutomator()
	sel := DefaultSelectors()
	f.missing[sel.FileInput] = true
	u := testUploader(f)

	// Slot failure is non-fatal: Save still happens.
	err := u.AttachImages(context.Background(),
		model.RecordRef{RecordID: "123", LayoutID: "L1"},
		[]model.ImageAsset{asset(t, 0)},
	)
	require.NoError(t, err)
	assert.Contains(t, f.calls, "click:"+sel.SaveButton)
	assert.NotContains(t, f.calls, "sendkeys:"+sel.FileInput)
}

func TestAttachImages_MissingSaveIsFatal(t *testing.T) {
	f := newFakeAutomator()
	sel := DefaultSelectors()
	f.missing[sel.SaveButton] = true
	u := testUploader(f)

	err := u.AttachImages(context.Background(),
		model.RecordRef{RecordID: "123", LayoutID: "L1"},
		[]model.ImageAsset{asset(t, 0)},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save control")
}

func TestAttachImages_NavigateError(t *testing.T) {
	f := newFakeAutomator()
	f.navigateErr = eris.New("browser gone")
	u := testUploader(f)

	err := u.AttachImages(context.Background(),
		model.RecordRef{RecordID: "123", LayoutID: "L1"},
		[]model.ImageAsset{asset(t, 0)},
	)
	require.Error(t, err)
}

func TestAttachImages_RequiresLayoutID(t *testing.T) {
	f := newFakeAutomator()
	u := testUploader(f)

	err := u.AttachImages(context.Background(),
		model.RecordRef{RecordID: "123"},
		[]model.ImageAsset{asset(t, 0)},
	)
	require.Error(t, err)
	assert.Empty(t, f.calls)
}

func TestLoadSelectors(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		profile, err := LoadSelectors("")
		require.NoError(t, err)
		assert.Equal(t, DefaultSelectors(), profile)
	})

	t.Run("partial override keeps defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "selectors.yaml")
		require.NoError(t, os.WriteFile(path, []byte("save_button: \"//button[@id='save']\"\n"), 0o644))

		profile, err := LoadSelectors(path)
		require.NoError(t, err)
		assert.Equal(t, "//button[@id='save']", profile.SaveButton)
		assert.Equal(t, DefaultSelectors().FileInput, profile.FileInput)
	})

	t.Run("missing file errors", func(t *testing.T) {
		_, err := LoadSelectors(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})
}

func TestSlotTrigger(t *testing.T) {
	sel := DefaultSelectors()
	assert.Equal(t, "//lyte-button[@data-zcqa='Image Upload 2']", sel.SlotTrigger(2))
}
