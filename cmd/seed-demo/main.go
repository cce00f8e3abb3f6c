package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Dauka12/olympiad-backend/internal/config"
	"github.com/Dauka12/olympiad-backend/internal/database"
	"github.com/Dauka12/olympiad-backend/internal/logger"
	"github.com/Dauka12/olympiad-backend/internal/model"
	"github.com/Dauka12/olympiad-backend/internal/repository"
	"github.com/Dauka12/olympiad-backend/internal/service"
	"github.com/jackc/pgx/v5"
)

// Seeds a demo category, a published exam with ten questions, and a demo
// student (IIN 040101123456, password "demo-pass"). Intended for local
// development only.
func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	studentRepo := repository.NewStudentRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)

	authService := service.NewAuthService(cfg, rdb)
	studentService := service.NewStudentService(studentRepo, authService)
	examService := service.NewExamService(examRepo, questionRepo, rdb, log)
	questionService := service.NewQuestionService(questionRepo, examRepo, log)

	fmt.Println("=== Seeding Demo Data ===")

	// Category
	var categoryID int64
	err = pool.QueryRow(ctx,
		"SELECT id FROM categories WHERE name_rus = $1", "Математика").Scan(&categoryID)
	if err != nil {
		if err != pgx.ErrNoRows {
			log.Fatal().Err(err).Msg("Failed to check existing category")
		}
		err = pool.QueryRow(ctx,
			"INSERT INTO categories (name_rus, name_kaz) VALUES ($1, $2) RETURNING id",
			"Математика", "Математика").Scan(&categoryID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create category")
		}
		fmt.Printf("Created category with ID: %d\n", categoryID)
	} else {
		fmt.Printf("Found existing category with ID: %d\n", categoryID)
	}

	// Demo student
	student, err := studentService.Register(ctx, &model.RegisterStudentRequest{
		IIN:       "040101123456",
		FirstName: "Айдана",
		LastName:  "Смагулова",
		Email:     "aidana@example.com",
		School:    "Школа-лицей №134",
		Grade:     11,
		Language:  model.LanguageRus,
		Password:  "demo-pass",
	})
	if err != nil {
		if err == service.ErrIINTaken {
			fmt.Println("Demo student already registered")
		} else {
			log.Fatal().Err(err).Msg("Failed to register demo student")
		}
	} else {
		fmt.Printf("Registered demo student with ID: %d\n", student.ID)
	}

	// Exam, live since an hour ago so a session can start immediately.
	exam := &model.Exam{
		NameRus:         "Городская олимпиада по математике",
		NameKaz:         "Математикадан қалалық олимпиада",
		TypeRus:         "Отборочный тур",
		TypeKaz:         "Іріктеу кезеңі",
		CategoryID:      &categoryID,
		AuthorID:        1,
		StartTime:       time.Now().Add(-time.Hour),
		DurationMinutes: 60,
	}
	if err := examService.Create(ctx, exam); err != nil {
		log.Fatal().Err(err).Msg("Failed to create exam")
	}
	fmt.Printf("Created exam with ID: %d\n", exam.ID)

	for i := 1; i <= 10; i++ {
		req := &model.AddQuestionRequest{
			TextRus:  fmt.Sprintf("Вопрос %d: чему равно %d + %d?", i, i, i),
			TextKaz:  fmt.Sprintf("%d-сұрақ: %d + %d неге тең?", i, i, i),
			OrderNum: i,
			Options: []model.AddOptionRequest{
				{TextRus: fmt.Sprintf("%d", 2*i), TextKaz: fmt.Sprintf("%d", 2*i)},
				{TextRus: fmt.Sprintf("%d", 2*i+1), TextKaz: fmt.Sprintf("%d", 2*i+1)},
				{TextRus: fmt.Sprintf("%d", 2*i-1), TextKaz: fmt.Sprintf("%d", 2*i-1)},
				{TextRus: fmt.Sprintf("%d", 2*i+2), TextKaz: fmt.Sprintf("%d", 2*i+2)},
			},
			CorrectOptionIndex: 0,
		}
		if _, err := questionService.Add(ctx, exam.ID, req); err != nil {
			log.Fatal().Err(err).Int("question", i).Msg("Failed to add question")
		}
	}
	fmt.Println("Added 10 questions")

	if err := examService.Publish(ctx, exam.ID); err != nil {
		log.Fatal().Err(err).Msg("Failed to publish exam")
	}
	fmt.Println("Exam published and cache warmed")

	fmt.Println("=== Done ===")
}
