package controller

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sharetube/syncwatch/pkg/videoref"
	"github.com/sharetube/syncwatch/pkg/ytvideodata"
)

func (c controller) getVideo(w http.ResponseWriter, r *http.Request) {
	videoId, ok := videoref.ParseYouTubeId(chi.URLParam(r, "video-id"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, envelope{"error": "invalid video id"})
		return
	}

	videoData, err := c.videoData.Get(r.Context(), videoId)
	if err != nil {
		if errors.Is(err, ytvideodata.ErrVideoNotFound) {
			writeJSON(w, http.StatusNotFound, envelope{"error": "video not found"})
			return
		}

		c.logger.InfoContext(r.Context(), "failed to get video data", "video_id", videoId, "error", err)
		writeJSON(w, http.StatusBadGateway, envelope{"error": "failed to get video data"})
		return
	}

	writeJSON(w, http.StatusOK, envelope{"data": videoData})
}
