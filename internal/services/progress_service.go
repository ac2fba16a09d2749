package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"delivery-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProgressService управляет записями о ходе доставки: создание,
// обновление этапов и история событий. Все обращения к таблице
// delivery_progress идут только через этот сервис.
type ProgressService struct {
	db *gorm.DB

	// Мьютексы на каждого водителя сериализуют проверку и вставку
	// при создании, чтобы не появилось двух активных доставок
	createLocks sync.Map // uint -> *sync.Mutex
}

func NewProgressService(db *gorm.DB) *ProgressService {
	return &ProgressService{db: db}
}

func (s *ProgressService) driverLock(driverID uint) *sync.Mutex {
	mu, _ := s.createLocks.LoadOrStore(driverID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// findActive ищет незавершенную доставку водителя
func (s *ProgressService) findActive(ctx context.Context, driverID uint) (*models.DeliveryProgress, error) {
	var progress models.DeliveryProgress
	err := s.db.WithContext(ctx).
		Where("driver_id = ? AND current_state <> ?", driverID, models.StateDeliveryComplete).
		Order("created_at DESC").
		First(&progress).Error
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

// Create создает новую запись доставки для водителя или возвращает
// существующую незавершенную (повторная диспетчеризация идемпотентна).
// Проверка и вставка выполняются под мьютексом водителя; если вставка
// все же упала из-за гонки, перед возвратом ошибки запись перечитывается -
// "кто-то успел создать раньше" считается успехом.
func (s *ProgressService) Create(ctx context.Context, driverID uint, orderIDs []int64) (*models.DeliveryProgress, error) {
	if driverID == 0 {
		return nil, fmt.Errorf("%w: driver_id", ErrMissingInput)
	}
	if len(orderIDs) > models.MaxOrdersPerRun {
		return nil, ErrMaxOrdersExceeded
	}

	mu := s.driverLock(driverID)
	mu.Lock()
	defer mu.Unlock()

	existing, err := s.findActive(ctx, driverID)
	if err == nil {
		log.Printf("ProgressService.Create: у водителя %d уже есть активная доставка %s", driverID, existing.ID)
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("ошибка поиска активной доставки: %w", err)
	}

	now := time.Now()
	nextState, _ := models.NextDeliveryState(models.StateDriverReady)
	progress := models.DeliveryProgress{
		ID:           uuid.NewString(),
		DriverID:     driverID,
		OrderIDs:     models.OrderIDList(orderIDs),
		CurrentState: models.StateDriverReady,
		NextState:    nextState,
		Stages:       models.NewStages(now),
		Events:       models.EventList{},
	}

	if err := s.db.WithContext(ctx).Create(&progress).Error; err != nil {
		// Гонка с параллельным создателем: перечитываем прежде
		// чем отдавать ошибку наверх
		if recovered, findErr := s.findActive(ctx, driverID); findErr == nil {
			log.Printf("ProgressService.Create: вставка не удалась, найдена запись %s, созданная конкурентно", recovered.ID)
			return recovered, nil
		}
		return nil, fmt.Errorf("ошибка создания записи доставки: %w", err)
	}

	log.Printf("ProgressService.Create: создана доставка %s для водителя %d с %d заказами", progress.ID, driverID, len(orderIDs))
	return &progress, nil
}

// FindByID возвращает запись доставки по идентификатору
func (s *ProgressService) FindByID(ctx context.Context, id string) (*models.DeliveryProgress, error) {
	var progress models.DeliveryProgress
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&progress).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка поиска записи доставки: %w", err)
	}
	return &progress, nil
}

// FindByDriver возвращает последнюю запись водителя независимо от
// состояния. Фильтрацию по активности выполняет вызывающая сторона.
func (s *ProgressService) FindByDriver(ctx context.Context, driverID uint) (*models.DeliveryProgress, error) {
	var progress models.DeliveryProgress
	err := s.db.WithContext(ctx).
		Where("driver_id = ?", driverID).
		Order("created_at DESC").
		First(&progress).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка поиска записи доставки: %w", err)
	}
	return &progress, nil
}

// Update применяет частичное обновление записи доставки.
// Переходы состояния допускаются только вперед по порядку этапов,
// завершенная доставка не изменяется.
func (s *ProgressService) Update(ctx context.Context, id string, upd *models.DeliveryProgressUpdate) (*models.DeliveryProgress, error) {
	if upd == nil {
		return nil, fmt.Errorf("%w: пустое обновление", ErrMissingInput)
	}

	progress, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if progress.CurrentState.IsTerminal() {
		return nil, ErrRecordFinalized
	}

	if upd.OrderIDs != nil {
		if len(*upd.OrderIDs) > models.MaxOrdersPerRun {
			return nil, ErrMaxOrdersExceeded
		}
		progress.OrderIDs = *upd.OrderIDs
	}

	if upd.CurrentState != nil {
		newState := *upd.CurrentState
		if !newState.IsValid() {
			return nil, fmt.Errorf("%w: %s", ErrInvalidState, newState)
		}
		if !models.CanTransition(progress.CurrentState, newState) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, progress.CurrentState, newState)
		}
		if newState != progress.CurrentState {
			progress.PreviousState = progress.CurrentState
			progress.CurrentState = newState
			if next, ok := models.NextDeliveryState(newState); ok {
				progress.NextState = next
			} else {
				progress.NextState = ""
			}
		}
	}

	// previous_state и next_state - справочные поля, явная передача
	// перекрывает автоматически выставленные значения
	if upd.PreviousState != nil {
		progress.PreviousState = *upd.PreviousState
	}
	if upd.NextState != nil {
		progress.NextState = *upd.NextState
	}

	// Массив этапов заменяется целиком, последняя запись побеждает
	if upd.Stages != nil {
		progress.Stages = *upd.Stages
	}

	if upd.EstimatedTimeRemaining != nil {
		progress.EstimatedTimeRemaining = *upd.EstimatedTimeRemaining
	}
	if upd.ActualTimeSpent != nil {
		progress.ActualTimeSpent = *upd.ActualTimeSpent
	}
	if upd.TotalDistanceTravelled != nil {
		progress.TotalDistanceTravelled = *upd.TotalDistanceTravelled
	}
	if upd.TotalTips != nil {
		progress.TotalTips = *upd.TotalTips
	}

	if err := s.db.WithContext(ctx).Save(progress).Error; err != nil {
		return nil, fmt.Errorf("ошибка обновления записи доставки: %w", err)
	}
	return progress, nil
}

// AppendEvent добавляет событие в историю доставки
func (s *ProgressService) AppendEvent(ctx context.Context, id string, eventType models.EventType, details string) (*models.DeliveryProgress, error) {
	if !eventType.IsValid() {
		return nil, fmt.Errorf("%w: неизвестный тип события %s", ErrMissingInput, eventType)
	}

	progress, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if progress.CurrentState.IsTerminal() {
		return nil, ErrRecordFinalized
	}

	progress.Events = append(progress.Events, models.DeliveryEvent{
		EventType:      eventType,
		EventTimestamp: time.Now(),
		EventDetails:   details,
	})

	if err := s.db.WithContext(ctx).Save(progress).Error; err != nil {
		return nil, fmt.Errorf("ошибка добавления события: %w", err)
	}
	return progress, nil
}

// Remove удаляет запись доставки. Административная операция,
// основной цикл жизни записи удаления не требует.
func (s *ProgressService) Remove(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.DeliveryProgress{})
	if res.Error != nil {
		return fmt.Errorf("ошибка удаления записи доставки: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAll возвращает все записи доставок
func (s *ProgressService) ListAll(ctx context.Context) ([]models.DeliveryProgress, error) {
	var list []models.DeliveryProgress
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения списка доставок: %w", err)
	}
	return list, nil
}

// ListByDriver возвращает страницу истории доставок водителя
func (s *ProgressService) ListByDriver(ctx context.Context, driverID uint, offset, limit int) ([]models.DeliveryProgress, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	var list []models.DeliveryProgress
	err := s.db.WithContext(ctx).
		Where("driver_id = ?", driverID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории доставок: %w", err)
	}
	return list, nil
}
