package bilibili

import "sort"

// playInfo is the raw stream-selection payload. Bilibili returns either a
// DASH section with a dedicated audio array or a legacy progressive list.
type playInfo struct {
	Dash *dashInfo  `json:"dash"`
	Durl []durlItem `json:"durl"`
}

type dashInfo struct {
	Audio []dashStream `json:"audio"`
	Video []dashStream `json:"video"`
}

type dashStream struct {
	ID        int    `json:"id"`
	BaseURL   string `json:"baseUrl"`
	BaseURLv2 string `json:"base_url"`
	Bandwidth int    `json:"bandwidth"`
}

// streamURL folds the baseUrl/base_url field-name variants into one value.
func (d dashStream) streamURL() string {
	if d.BaseURL != "" {
		return d.BaseURL
	}
	return d.BaseURLv2
}

type durlItem struct {
	URL string `json:"url"`
}

type streamShape int

const (
	shapeNone streamShape = iota
	shapeDashAudio
	shapeProgressive
)

// streamSelection is the normalized view of a playInfo payload. All shape
// probing happens in normalizeStreams; consumers only switch on shape.
type streamSelection struct {
	shape          streamShape
	audio          []dashStream
	progressiveURL string
}

func normalizeStreams(info playInfo) streamSelection {
	if info.Dash != nil && len(info.Dash.Audio) > 0 {
		audio := make([]dashStream, len(info.Dash.Audio))
		copy(audio, info.Dash.Audio)
		// Stable sort: ties keep the original array order.
		sort.SliceStable(audio, func(i, j int) bool {
			return audio[i].Bandwidth > audio[j].Bandwidth
		})
		return streamSelection{shape: shapeDashAudio, audio: audio}
	}
	if len(info.Durl) > 0 && info.Durl[0].URL != "" {
		return streamSelection{shape: shapeProgressive, progressiveURL: info.Durl[0].URL}
	}
	return streamSelection{shape: shapeNone}
}

// pickAudioURL returns the best audio address: the highest-bandwidth
// dedicated audio stream, falling back to the first progressive entry.
func (sel streamSelection) pickAudioURL() (string, error) {
	switch sel.shape {
	case shapeDashAudio:
		if url := sel.audio[0].streamURL(); url != "" {
			return url, nil
		}
	case shapeProgressive:
		return sel.progressiveURL, nil
	}
	return "", newError(KindNoStream, "未找到可用的音频流")
}
