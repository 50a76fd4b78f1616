// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package api defines the HTTP routes of the report server.
//
// Functions:
//   - ReportRouter: generation, uploads and report editing.
//   - TenantRouter: browsing, presigned links and the report index.
//   - TierRouter: the subscription tiers known to the profile store.
//
// Every tenant scoped route takes the tenant id from the path; keys outside
// that tenant are rejected with 403.
package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jaycherian/gcp-go-daily-report/internal/app"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/blob"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/commands"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/keys"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/media"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/profile"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/services"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/workflow"
)

// StatusFor maps the error taxonomy onto HTTP status codes.
func StatusFor(err error) int {
	var (
		stageErr    *model.StageError
		configErr   *model.ConfigurationError
		notFound    *model.NotFoundError
		parseErr    *model.ParseError
		unavailable *model.StoreUnavailableError
	)
	switch {
	case errors.Is(err, services.ErrOutsideTenant):
		return http.StatusForbidden
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &parseErr):
		return http.StatusBadRequest
	case errors.As(err, &configErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &unavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &stageErr) && stageErr.Stage == commands.StageInit:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func abort(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

type generateResponse struct {
	ReportKey string   `json:"reportKey"`
	Warnings  []string `json:"warnings"`
}

func generate(c *gin.Context, pipeline *workflow.ReportPipeline, req workflow.GenerateRequest) {
	res, err := pipeline.Run(c.Request.Context(), req)
	if err != nil {
		abort(c, err)
		return
	}
	out := generateResponse{ReportKey: res.ReportKey, Warnings: make([]string, 0, len(res.Warnings))}
	for _, w := range res.Warnings {
		out.Warnings = append(out.Warnings, w.Source+": "+w.Err.Error())
	}
	c.JSON(http.StatusCreated, out)
}

// ReportRouter sets up the routes that create and edit reports.
//
// This function defines the following endpoints:
//   - POST /reports: Generates a report for a video already in the store.
//   - POST /tenants/:tenant/uploads: Stores a walkthrough video in the
//     project's uploads folder and, with ?generate=true, reports on it.
//   - GET /tenants/:tenant/report?key=: Reads a published report.
//   - PUT /tenants/:tenant/report?key=: Replaces a report and regenerates
//     its viewer and PDF.
//   - POST /tenants/:tenant/report/images?key=: Adds an image.
//   - DELETE /tenants/:tenant/report/images/:file?key=: Removes an image.
func ReportRouter(r *gin.RouterGroup, state *app.State) {
	r.POST("/reports", func(c *gin.Context) {
		var req workflow.GenerateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		// Server side paths are never taken from clients.
		if req.Video.LocalPath != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "video.localPath is not accepted over HTTP"})
			return
		}
		generate(c, state.Pipeline, req)
	})

	tenant := r.Group("/tenants/:tenant")
	{
		tenant.POST("/uploads", func(c *gin.Context) {
			tenantID := c.Param("tenant")
			customer, project := c.PostForm("customer"), c.PostForm("project")
			file, err := c.FormFile("file")
			if err != nil || customer == "" || project == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "customer, project and file are required"})
				return
			}
			body, err := file.Open()
			if err != nil {
				abort(c, err)
				return
			}
			defer body.Close()

			name := keys.Escape(path.Base(file.Filename))
			contentType := file.Header.Get("Content-Type")
			if !media.IsVideo(name, contentType) {
				c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "not a video"})
				return
			}
			key := keys.ProjectPrefix(tenantID, customer, project) + keys.UploadsDir + keys.Separator + name
			if _, err := state.Blobs.Put(c.Request.Context(), key, body, blob.PutOptions{ContentType: contentType}); err != nil {
				abort(c, err)
				return
			}
			if c.Query("generate") != "true" {
				c.JSON(http.StatusAccepted, gin.H{"key": key})
				return
			}
			generate(c, state.Pipeline, workflow.GenerateRequest{
				TenantID: tenantID,
				Customer: customer,
				Project:  project,
				Video:    workflow.VideoRef{Key: key},
			})
		})

		tenant.GET("/report", func(c *gin.Context) {
			doc, err := state.Reports.GetReport(c.Request.Context(), c.Param("tenant"), c.Query("key"))
			if err != nil {
				abort(c, err)
				return
			}
			c.JSON(http.StatusOK, doc)
		})

		tenant.PUT("/report", func(c *gin.Context) {
			data, err := io.ReadAll(c.Request.Body)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			doc, err := model.ParseReportDocument(data)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if err := state.Reports.SaveReport(c.Request.Context(), c.Param("tenant"), c.Query("key"), doc); err != nil {
				abort(c, err)
				return
			}
			c.JSON(http.StatusOK, doc)
		})

		tenant.POST("/report/images", func(c *gin.Context) {
			file, err := c.FormFile("file")
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
				return
			}
			body, err := file.Open()
			if err != nil {
				abort(c, err)
				return
			}
			defer body.Close()
			doc, err := state.Reports.AddImage(c.Request.Context(), c.Param("tenant"), c.Query("key"),
				file.Filename, c.PostForm("caption"), body, file.Header.Get("Content-Type"))
			if err != nil {
				abort(c, err)
				return
			}
			c.JSON(http.StatusOK, doc)
		})

		tenant.DELETE("/report/images/:file", func(c *gin.Context) {
			doc, err := state.Reports.RemoveImage(c.Request.Context(), c.Param("tenant"), c.Query("key"), c.Param("file"))
			if err != nil {
				abort(c, err)
				return
			}
			c.JSON(http.StatusOK, doc)
		})
	}
}

// TenantRouter sets up the read-only routes over a tenant's reports.
//
// This function defines the following endpoints:
//   - GET /tenants/:tenant/browse?customer=&project=: One level of the tree.
//   - GET /tenants/:tenant/presign?key=: A temporary link to one asset.
//   - GET /tenants/:tenant/index?customer=&project=&limit=: Indexed reports,
//     newest first. Responds 501 when no index is configured.
//   - GET /tenants/:tenant/index/:id: One indexed report.
func TenantRouter(r *gin.RouterGroup, state *app.State) {
	tenant := r.Group("/tenants/:tenant")
	{
		tenant.GET("/browse", func(c *gin.Context) {
			out, err := state.Reports.Browse(c.Request.Context(), c.Param("tenant"), c.Query("customer"), c.Query("project"))
			if err != nil {
				abort(c, err)
				return
			}
			c.JSON(http.StatusOK, out)
		})

		tenant.GET("/presign", func(c *gin.Context) {
			url, err := state.Reports.PresignAsset(c.Request.Context(), c.Param("tenant"), c.Query("key"))
			if err != nil {
				abort(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"url": url})
		})

		tenant.GET("/index", func(c *gin.Context) {
			if state.Index == nil {
				c.JSON(http.StatusNotImplemented, gin.H{"error": "report index is not configured"})
				return
			}
			limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
			if err != nil || limit <= 0 {
				limit = 50
			}
			rows, err := state.Index.List(c.Request.Context(), c.Param("tenant"), c.Query("customer"), c.Query("project"), limit)
			if err != nil {
				abort(c, err)
				return
			}
			c.JSON(http.StatusOK, rows)
		})

		tenant.GET("/index/:id", func(c *gin.Context) {
			if state.Index == nil {
				c.JSON(http.StatusNotImplemented, gin.H{"error": "report index is not configured"})
				return
			}
			row, err := state.Index.Get(c.Request.Context(), c.Param("id"))
			if err == nil && row.TenantID != keys.Escape(c.Param("tenant")) && row.TenantID != c.Param("tenant") {
				err = &model.NotFoundError{Key: c.Param("id"), Err: errors.New("no such report")}
			}
			if err != nil {
				abort(c, err)
				return
			}
			c.JSON(http.StatusOK, row)
		})
	}
}

// TierRouter exposes the subscription tiers when the profile store can list
// them.
func TierRouter(r *gin.RouterGroup, state *app.State) {
	r.GET("/tiers", func(c *gin.Context) {
		lister, ok := state.Profiles.(profile.TierLister)
		if !ok {
			c.JSON(http.StatusOK, []string{profile.DefaultTier})
			return
		}
		tiers, err := lister.ListTiers(c.Request.Context())
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, tiers)
	})
}
