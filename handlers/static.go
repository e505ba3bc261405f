package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// OfflineAssets is what the service worker caches at install.
var OfflineAssets = []string{
	"./",
	"./index.html",
	"./css/style.css",
	"./js/auth.js",
	"./js/app.js",
	"./manifest.json",
	"./icons/icon-192.png",
	"./icons/icon-512.png",
}

// OfflineManifest handles GET /offline-manifest.json
func (h *Handlers) OfflineManifest(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"cache_name": h.Config.CacheName,
		"assets":     OfflineAssets,
		"strategy":   "network-first",
	})
}
