package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	cldapi "github.com/cloudinary/cloudinary-go/v2/api"

	"github.com/smartwaste/smartwaste-api/config"
)

// Photo signs direct uploads of report photos
type Photo struct {
	Cloudinary config.Cloudinary
	now        func() time.Time
}

// PhotoSignatureResponse carries everything a client needs for a signed upload
type PhotoSignatureResponse struct {
	Timestamp    string `json:"timestamp"`
	Signature    string `json:"signature"`
	APIKey       string `json:"apiKey"`
	CloudName    string `json:"cloudName"`
	UploadPreset string `json:"uploadPreset,omitempty"`
}

// SignatureHandler returns upload parameters signed with the account secret
func (p Photo) SignatureHandler(w http.ResponseWriter, r *http.Request) {
	if p.Cloudinary.APISecret == "" {
		config.ErrorStatus("photo uploads are not configured", http.StatusServiceUnavailable, w, errors.New("cloudinary secret is not set"))
		return
	}
	now := time.Now
	if p.now != nil {
		now = p.now
	}
	timestamp := strconv.FormatInt(now().Unix(), 10)

	params := url.Values{}
	params.Set("timestamp", timestamp)
	if p.Cloudinary.UploadPreset != "" {
		params.Set("upload_preset", p.Cloudinary.UploadPreset)
	}
	signature, err := cldapi.SignParameters(params, p.Cloudinary.APISecret)
	if err != nil {
		writeError(w, "failed to sign upload", err)
		return
	}

	writeJSON(w, http.StatusOK, PhotoSignatureResponse{
		Timestamp:    timestamp,
		Signature:    signature,
		APIKey:       p.Cloudinary.APIKey,
		CloudName:    p.Cloudinary.CloudName,
		UploadPreset: p.Cloudinary.UploadPreset,
	})
}
