package service

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/repository"
)

const proctorWriteTimeout = 10 * time.Second

// ProctorService stores webcam captures taken during an exam. Storage is best
// effort: failures are logged and never reach the student.
type ProctorService struct {
	media  *MediaService
	photos repository.ProctorStore
	log    zerolog.Logger
	now    func() time.Time
	wg     sync.WaitGroup
}

// NewProctorService creates a new ProctorService.
func NewProctorService(media *MediaService, photos repository.ProctorStore, log zerolog.Logger) *ProctorService {
	return &ProctorService{
		media:  media,
		photos: photos,
		log:    log.With().Str("component", "proctor_service").Logger(),
		now:    time.Now,
	}
}

// Capture stores one image in the background under proctor/<session>/.
func (s *ProctorService) Capture(sessionID, examID, studentID uuid.UUID, data []byte, ext string) {
	capturedAt := s.now()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), proctorWriteTimeout)
		defer cancel()

		if err := s.store(ctx, sessionID, examID, studentID, data, ext, capturedAt); err != nil {
			s.log.Warn().Err(err).
				Str("session_id", sessionID.String()).
				Msg("Failed to save proctor photo")
		}
	}()
}

func (s *ProctorService) store(ctx context.Context, sessionID, examID, studentID uuid.UUID, data []byte, ext string, at time.Time) error {
	name := fmt.Sprintf("%d%s", at.UnixMilli(), ext)
	url, err := s.media.Save("proctor/"+sessionID.String(), name, bytes.NewReader(data))
	if err != nil {
		return err
	}
	return s.photos.Insert(ctx, &model.ProctorPhoto{
		SessionID:  sessionID,
		ExamID:     examID,
		StudentID:  studentID,
		URL:        url,
		CapturedAt: at,
	})
}

// List returns the captures of a session.
func (s *ProctorService) List(ctx context.Context, sessionID uuid.UUID) ([]model.ProctorPhoto, error) {
	photos, err := s.photos.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if photos == nil {
		photos = []model.ProctorPhoto{}
	}
	return photos, nil
}

// Wait blocks until pending captures are written.
func (s *ProctorService) Wait() {
	s.wg.Wait()
}
