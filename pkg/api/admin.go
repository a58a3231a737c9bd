/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ldruley/tripmailer/pkg/apiresponses"
	"github.com/ldruley/tripmailer/pkg/email"
	"github.com/ldruley/tripmailer/pkg/queue"
)

// QueueController exposes queue statistics.
type QueueController struct {
	service *email.Service
	log     *zap.SugaredLogger
}

// NewQueueController creates the controller.
func NewQueueController(service *email.Service, log *zap.SugaredLogger) *QueueController {
	return &QueueController{service: service, log: log}
}

func (qc *QueueController) BasePath() string { return "queue" }

func (qc *QueueController) Handlers() []gin.HandlerFunc { return nil }

func (qc *QueueController) Register(rg *gin.RouterGroup) error {
	rg.GET("/stats", qc.getStats)
	return nil
}

func (qc *QueueController) getStats(c *gin.Context) {
	counts, err := qc.service.GetQueueStats(c.Request.Context())
	if err != nil {
		apiresponses.RespondInternalError(c, "read queue stats", err, qc.log)
		return
	}
	apiresponses.RespondOK(c, counts)
}

// WorkerController administers registered workers: inspect, pause, resume.
type WorkerController struct {
	registry *queue.Registry
}

// NewWorkerController creates the controller.
func NewWorkerController(registry *queue.Registry) *WorkerController {
	return &WorkerController{registry: registry}
}

func (wc *WorkerController) BasePath() string { return "workers" }

func (wc *WorkerController) Handlers() []gin.HandlerFunc { return nil }

func (wc *WorkerController) Register(rg *gin.RouterGroup) error {
	rg.GET("/:name", wc.getWorker)
	rg.POST("/:name/pause", wc.pauseWorker)
	rg.POST("/:name/resume", wc.resumeWorker)
	return nil
}

func (wc *WorkerController) lookup(c *gin.Context) *queue.Worker {
	name := c.Param("name")
	worker := wc.registry.GetWorker(name)
	if worker == nil {
		apiresponses.RespondNotFound(c, "worker", name)
		return nil
	}
	return worker
}

func (wc *WorkerController) getWorker(c *gin.Context) {
	if worker := wc.lookup(c); worker != nil {
		apiresponses.RespondOK(c, worker.Stats())
	}
}

func (wc *WorkerController) pauseWorker(c *gin.Context) {
	if worker := wc.lookup(c); worker != nil {
		worker.Pause()
		apiresponses.RespondOK(c, worker.Stats())
	}
}

func (wc *WorkerController) resumeWorker(c *gin.Context) {
	if worker := wc.lookup(c); worker != nil {
		worker.Resume()
		apiresponses.RespondOK(c, worker.Stats())
	}
}
