package inpaint

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
	"github.com/go-resty/resty/v2"

	"wmclean/pkg/watermark"
)

// HTTPInpainter posts the image and mask as multipart PNG files ("image" and
// "mask") to a LaMa-style service and decodes the image it answers with.
type HTTPInpainter struct {
	url    string
	client *resty.Client
}

// NewHTTPInpainter builds a client for cfg.URL. Transport errors and 5xx
// answers are retried cfg.Retries times.
func NewHTTPInpainter(cfg Config) *HTTPInpainter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	c := resty.New().
		SetTimeout(timeout).
		SetRetryCount(cfg.Retries).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
	if cfg.RetryWait > 0 {
		c.SetRetryWaitTime(cfg.RetryWait).SetRetryMaxWaitTime(4 * cfg.RetryWait)
	}
	return &HTTPInpainter{url: cfg.URL, client: c}
}

// Inpaint implements Inpainter.
func (h *HTTPInpainter) Inpaint(ctx context.Context, img image.Image, mask *watermark.Mask) (image.Image, error) {
	if err := checkSize(img, mask); err != nil {
		return nil, err
	}
	body, contentType, err := multipartBody(img, mask)
	if err != nil {
		return nil, err
	}
	// a byte slice body is re-read on every retry attempt
	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetBody(body).
		Post(h.url)
	if err != nil {
		return nil, fmt.Errorf("inpaint request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("inpaint service %s: %s", h.url, resp.Status())
	}
	out, err := imaging.Decode(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("decode inpaint result: %w", err)
	}
	b := img.Bounds()
	if ob := out.Bounds(); ob.Dx() != b.Dx() || ob.Dy() != b.Dy() {
		// some services pad to a multiple of 8; crop back to the source size
		if ob.Dx() < b.Dx() || ob.Dy() < b.Dy() {
			return nil, fmt.Errorf("inpaint result %dx%d smaller than image %dx%d", ob.Dx(), ob.Dy(), b.Dx(), b.Dy())
		}
		out = imaging.Crop(out, image.Rect(ob.Min.X, ob.Min.Y, ob.Min.X+b.Dx(), ob.Min.Y+b.Dy()))
	}
	return out, nil
}

// multipartBody encodes img and mask as the "image" and "mask" PNG parts.
func multipartBody(img image.Image, mask *watermark.Mask) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	parts := []struct {
		field, file string
		img         image.Image
	}{
		{"image", "image.png", img},
		{"mask", "mask.png", mask.Gray()},
	}
	for _, p := range parts {
		fw, err := mw.CreateFormFile(p.field, p.file)
		if err != nil {
			return nil, "", fmt.Errorf("create %s part: %w", p.field, err)
		}
		if err := imaging.Encode(fw, p.img, imaging.PNG); err != nil {
			return nil, "", fmt.Errorf("encode %s: %w", p.field, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
