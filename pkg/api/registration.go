package api

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/learnhub/learnhub/pkg/controller"
	"github.com/learnhub/learnhub/pkg/instructor"
	"github.com/learnhub/learnhub/pkg/registration"
)

const multipartMemory = 8 << 20

var resumeExtensions = map[string]struct{}{
	".pdf":  {},
	".doc":  {},
	".docx": {},
}

type verifyRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

func (r *verifyRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" {
		return errors.New("email is required")
	}
	if strings.TrimSpace(r.OTP) == "" {
		return errors.New("otp is required")
	}
	return nil
}

type resendRequest struct {
	Email string `json:"email"`
}

func (r *resendRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" {
		return errors.New("email is required")
	}
	return nil
}

type registerResponse struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}

type verifyResponse struct {
	Instructor         interface{} `json:"instructor"`
	ResumeUploadQueued bool        `json:"resumeUploadQueued"`
}

// register accepts a multipart form with an optional "resume" file, parks the
// file in the upload directory and starts the verification.
func (h *handlers) register(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxUploadSize)
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			controller.Error(c, &controller.AppError{
				Status:  http.StatusRequestEntityTooLarge,
				Code:    controller.CodeValidation,
				Message: fmt.Sprintf("request exceeds %d bytes", tooLarge.Limit),
			})
			return
		}
		controller.Error(c, controller.NewValidationError("registration must be submitted as multipart/form-data", map[string]interface{}{"cause": err.Error()}))
		return
	}

	form := registration.Form{
		Name:      c.PostForm("name"),
		Email:     c.PostForm("email"),
		Phone:     c.PostForm("phone"),
		Expertise: c.PostForm("expertise"),
	}
	file, err := c.FormFile("resume")
	switch {
	case err == nil:
		path, saveErr := h.saveResume(c, file)
		if saveErr != nil {
			controller.Error(c, saveErr)
			return
		}
		form.ResumePath = path
		form.ResumeName = filepath.Base(file.Filename)
	case errors.Is(err, http.ErrMissingFile):
	default:
		controller.Error(c, controller.NewValidationError("invalid resume upload", map[string]interface{}{"cause": err.Error()}))
		return
	}

	if err := h.deps.Registration.Start(c.Request.Context(), form); err != nil {
		h.discardUpload(c, form.ResumePath)
		h.fail(c, err)
		return
	}
	controller.Accepted(c, registerResponse{
		Message: "verification code sent",
		Email:   instructor.NormalizeEmail(form.Email),
	})
}

func (h *handlers) saveResume(c *gin.Context, file *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if _, ok := resumeExtensions[ext]; !ok {
		return "", controller.NewValidationError("resume must be a .pdf, .doc or .docx file", map[string]interface{}{"filename": file.Filename})
	}
	dir, err := filepath.Abs(h.cfg.UploadDir)
	if err != nil {
		return "", controller.NewInternalError(err)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", controller.NewInternalError(fmt.Errorf("create upload dir: %w", err))
	}
	dst := filepath.Join(dir, uuid.NewString()+ext)
	if err := c.SaveUploadedFile(file, dst); err != nil {
		return "", controller.NewInternalError(fmt.Errorf("save resume: %w", err))
	}
	return dst, nil
}

func (h *handlers) discardUpload(c *gin.Context, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		h.log.WithContext(c.Request.Context()).Warn("failed to remove rejected upload", "path", path, "error", err)
	}
}

func (h *handlers) verifyOTP(c *gin.Context) {
	var req verifyRequest
	if err := controller.BindJSON(c, &req); err != nil {
		controller.Error(c, err)
		return
	}

	created, err := h.deps.Registration.Verify(c.Request.Context(), req.Email, strings.TrimSpace(req.OTP))
	if err != nil && created == nil {
		h.fail(c, err)
		return
	}
	queued := err == nil
	if err != nil {
		// The account exists; only the resume upload could not be queued.
		h.log.WithContext(c.Request.Context()).Error("resume upload not queued", "instructor_id", created.ID, "error", err)
	}
	controller.Created(c, verifyResponse{Instructor: created, ResumeUploadQueued: queued})
}

func (h *handlers) resendOTP(c *gin.Context) {
	var req resendRequest
	if err := controller.BindJSON(c, &req); err != nil {
		controller.Error(c, err)
		return
	}
	if err := h.deps.Registration.Resend(c.Request.Context(), req.Email); err != nil {
		h.fail(c, err)
		return
	}
	controller.Accepted(c, gin.H{"message": "if a registration is pending, a new code has been sent"})
}
