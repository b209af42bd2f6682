// Package library lists the built-in backgrounds.
package library

import (
	"tools.zach/dev/wisdomcard/internal/assets"
	"tools.zach/dev/wisdomcard/internal/layout"
)

// Background is a built-in background with a small preview image.
type Background struct {
	ID        string      `json:"id"`
	Thumbnail string      `json:"thumbnail"`
	URL       string      `json:"url"`
	Kind      assets.Kind `json:"type"`
}

// Asset returns the background as a render input.
func (b Background) Asset() assets.Background {
	return assets.Background{Locator: b.URL, Kind: b.Kind}
}

func pexels(id, photo string) Background {
	base := "https://images.pexels.com/photos/" + photo + "/pexels-photo-" + photo + ".jpeg?auto=compress&cs=tinysrgb"
	return Background{
		ID:        id,
		Thumbnail: base + "&w=400&h=400&dpr=1",
		URL:       base + "&w=1080&h=1080&dpr=1",
		Kind:      assets.KindImage,
	}
}

func vimeo(id, playback, thumbSig, fullSig string) Background {
	base := "https://player.vimeo.com/progressive_redirect/playback/" + playback + "/rendition/"
	query := "/file.mp4?loc=external&oauth2_token_id=1748226074&signature="
	return Background{
		ID:        id,
		Thumbnail: base + "360p" + query + thumbSig,
		URL:       base + "1080p" + query + fullSig,
		Kind:      assets.KindVideo,
	}
}

// Images are square photo backgrounds.
var Images = []Background{
	pexels("img1", "2895295"),
	pexels("img2", "5997327"),
	pexels("img3", "7361834"),
	pexels("img4", "7241415"),
	pexels("img5", "5325893"),
	pexels("img6", "8169429"),
}

// Videos are vertical clips.
var Videos = []Background{
	{
		ID:        "vid1",
		Thumbnail: "https://oliltjdegsuvlmblpvlp.supabase.co/storage/v1/object/public/uploads//18611159-hd_1080_1920_30fps.mp4",
		URL:       "https://oliltjdegsuvlmblpvlp.supabase.co/storage/v1/object/public/uploads//18611159-hd_1080_1920_30fps.mp4",
		Kind:      assets.KindVideo,
	},
	vimeo("vid2", "918738356",
		"8753232822506b3a936c56780c1097262176b6d480826955a0b776a30c33a948",
		"4bd3a24683526543b5e40e28f3521d4c67ec347108969966b5735f1155998782"),
	vimeo("vid3", "918738275",
		"13038defc4293c6f8f5539d91f83e580a82776c8c4a961f185d5a9c0897b7b13",
		"4e18d184090b835e985b8801c4a3013b94689c51a7e6b7201c1303c1e2858b9f"),
	vimeo("vid4", "918738259",
		"d027b2ce8f36a581452427a9a16f9f06124508933b5c65c276189ac35c5c830c",
		"a59d9cbe665c192b490f2382e4e1ca4f8c2e9b0b975e11e033285c52c6f37640"),
	vimeo("vid5", "907936652",
		"271542f9b884b8593a8d951834a810d1964f434771f8b1b869671d49265e0108",
		"7562f74235284b39c943171804c861214e1a067a9998059048a28796593b4556"),
	vimeo("vid6", "918738241",
		"9c66e2c90c746781432c695b45f5c3527b102143003b57f20224e754e150f836",
		"f44458f3801844b2f23438a164b4c737c35f29d7d4554b4f0b246a3666b26284"),
}

// ForFormat returns the backgrounds offered for f: photos for square posts,
// clips for vertical reels.
func ForFormat(f layout.Format) []Background {
	if f == layout.Vertical {
		return Videos
	}
	return Images
}

// Lookup finds a built-in background by id.
func Lookup(id string) (Background, bool) {
	for _, list := range [][]Background{Images, Videos} {
		for _, b := range list {
			if b.ID == id {
				return b, true
			}
		}
	}
	return Background{}, false
}
