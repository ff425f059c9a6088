package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// OK sends data as the JSON body with HTTP 200.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created sends data as the JSON body with HTTP 201.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// Accepted sends data as the JSON body with HTTP 202, used when work was queued.
func Accepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, data)
}

// NoContent sends HTTP 204 without a body.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
