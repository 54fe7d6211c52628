package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/event-harvest/internal/category"
	"github.com/user/event-harvest/internal/entity"
)

const playdbListing = `<html><body>
<a href="http://www.playdb.co.kr/playdb/PlaydbDetail.asp?sReqPlayNo=100" onclick="">Direct</a>
<a href="#" onclick="goDetail('200')">Handler</a>
<a href="javascript:;" onclick="goDetail(&quot;300&quot;); return false;">Double quotes</a>
<a href="javascript:goDetail('400')">Script href</a>
<a href="/playdb/other.asp">Unrelated</a>
<a onclick="openPopup('999')">Other handler</a>
<a>No attributes</a>
</body></html>`

func playdbDiscovery() category.Discovery {
	return category.Discovery{
		Strategy: category.Paginated,
		BaseURL:  "http://www.playdb.co.kr/",
		Link: category.LinkRule{
			PathContains: "/playdb/PlaydbDetail.asp?sReqPlayNo=",
			Handler: &category.Handler{
				Name:        "goDetail",
				URLTemplate: "http://www.playdb.co.kr/playdb/PlaydbDetail.asp?sReqPlayNo={id}",
			},
		},
	}
}

// TestExtractLinks_DirectAndHandler verifies both address-recovery strategies normalize
// to the same canonical detail URL form.
func TestExtractLinks_DirectAndHandler(t *testing.T) {
	t.Parallel()

	got, err := ExtractLinks(playdbListing, "http://www.playdb.co.kr/playdb/playdblist.asp?Page=1", playdbDiscovery())
	require.NoError(t, err)

	want := []entity.DetailURL{
		"http://www.playdb.co.kr/playdb/PlaydbDetail.asp?sReqPlayNo=100",
		"http://www.playdb.co.kr/playdb/PlaydbDetail.asp?sReqPlayNo=200",
		"http://www.playdb.co.kr/playdb/PlaydbDetail.asp?sReqPlayNo=300",
		"http://www.playdb.co.kr/playdb/PlaydbDetail.asp?sReqPlayNo=400",
	}
	assert.Equal(t, want, got)
}

// TestExtractLinks_ResolvesRelativeAndStrips verifies relative hrefs are resolved against the
// base URL and that stripped regions do not contribute links.
func TestExtractLinks_ResolvesRelativeAndStrips(t *testing.T) {
	t.Parallel()

	html := `<html><head></head><body>
<header><a href="/kfes/detail/fstvlDetail.do?id=header">Header link</a></header>
<ul>
  <li><a href="/kfes/detail/fstvlDetail.do?id=1">One</a></li>
  <li><a href="fstvlDetail.do?id=2">Relative</a></li>
  <li><a href="/kfes/list/other.do">Other</a></li>
</ul>
<footer><a href="/kfes/detail/fstvlDetail.do?id=footer">Footer link</a></footer>
</body></html>`
	d := category.Discovery{
		Strategy: category.InfiniteScroll,
		BaseURL:  "https://korean.visitkorea.or.kr/kfes/detail/",
		Strip:    []string{"header", "footer", "head"},
		Link:     category.LinkRule{PathContains: "/kfes/detail/fstvlDetail.do"},
	}

	got, err := ExtractLinks(html, "https://korean.visitkorea.or.kr/kfes/list/wntyFstvlList.do", d)
	require.NoError(t, err)
	assert.Equal(t, []entity.DetailURL{
		"https://korean.visitkorea.or.kr/kfes/detail/fstvlDetail.do?id=1",
		"https://korean.visitkorea.or.kr/kfes/detail/fstvlDetail.do?id=2",
	}, got)
}

// TestExtractLinks_PageURLAsDefaultBase verifies the listing URL resolves hrefs when no base is set.
func TestExtractLinks_PageURLAsDefaultBase(t *testing.T) {
	t.Parallel()

	d := category.Discovery{Link: category.LinkRule{PathContains: "/exhibition/4"}}
	got, err := ExtractLinks(`<a href="/exhibition/4123">x</a>`, "https://www.opengallery.co.kr/exhibition/?p=2", d)
	require.NoError(t, err)
	assert.Equal(t, []entity.DetailURL{"https://www.opengallery.co.kr/exhibition/4123"}, got)
}

func TestDedup_KeepsFirstOccurrence(t *testing.T) {
	t.Parallel()

	in := []entity.DetailURL{"a", "b", "a", "c", "b"}
	assert.Equal(t, []entity.DetailURL{"a", "b", "c"}, Dedup(in))
	assert.Empty(t, Dedup(nil))
}

func TestSkipPrefix(t *testing.T) {
	t.Parallel()

	in := []entity.DetailURL{"p1", "p2", "p3", "a", "b"}
	assert.Equal(t, []entity.DetailURL{"a", "b"}, SkipPrefix(in, 3))
	assert.Equal(t, in, SkipPrefix(in, 0))
	assert.Nil(t, SkipPrefix(in, 5))
	assert.Nil(t, SkipPrefix(in, 9))
}
