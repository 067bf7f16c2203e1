package supabase

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"imagechat-backend/internal/models"
)

// ErrInsufficientBalance is returned by AdjustCreditBalance when the
// adjustment would drive the balance below zero.
var ErrInsufficientBalance = errors.New("insufficient credit balance")

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(connectionString string) (*DatabaseClient, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (d *DatabaseClient) Close() error {
	return d.db.Close()
}

// --- Conversations ---

func (d *DatabaseClient) CreateConversation(userID uuid.UUID, title string) (*models.Conversation, error) {
	var conv models.Conversation
	err := d.db.QueryRow(`
		INSERT INTO conversations (user_id, title)
		VALUES ($1, $2)
		RETURNING id, user_id, title, thumbnail_url, created_at, updated_at
	`, userID, title).Scan(
		&conv.ID, &conv.UserID, &conv.Title, &conv.ThumbnailURL, &conv.CreatedAt, &conv.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	return &conv, nil
}

func (d *DatabaseClient) GetConversation(conversationID, userID uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	err := d.db.QueryRow(`
		SELECT id, user_id, title, thumbnail_url, created_at, updated_at
		FROM conversations
		WHERE id = $1 AND user_id = $2
	`, conversationID, userID).Scan(
		&conv.ID, &conv.UserID, &conv.Title, &conv.ThumbnailURL, &conv.CreatedAt, &conv.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	return &conv, nil
}

func (d *DatabaseClient) ListConversations(userID uuid.UUID) ([]models.Conversation, error) {
	rows, err := d.db.Query(`
		SELECT id, user_id, title, thumbnail_url, created_at, updated_at
		FROM conversations
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []models.Conversation
	for rows.Next() {
		var conv models.Conversation
		err := rows.Scan(
			&conv.ID, &conv.UserID, &conv.Title, &conv.ThumbnailURL, &conv.CreatedAt, &conv.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}

	return conversations, nil
}

func (d *DatabaseClient) DeleteConversation(conversationID, userID uuid.UUID) error {
	_, err := d.db.Exec(`
		DELETE FROM conversations
		WHERE id = $1 AND user_id = $2
	`, conversationID, userID)
	return err
}

// SetConversationThumbnail writes the thumbnail only if none is set yet, so
// the first image a conversation ever sees stays its thumbnail.
func (d *DatabaseClient) SetConversationThumbnail(conversationID uuid.UUID, thumbnailURL string) error {
	_, err := d.db.Exec(`
		UPDATE conversations
		SET thumbnail_url = $1, updated_at = NOW()
		WHERE id = $2 AND thumbnail_url IS NULL
	`, thumbnailURL, conversationID)
	return err
}

func (d *DatabaseClient) TouchConversation(conversationID uuid.UUID) error {
	_, err := d.db.Exec(`
		UPDATE conversations
		SET updated_at = NOW()
		WHERE id = $1
	`, conversationID)
	return err
}

// --- Messages ---

func (d *DatabaseClient) CreateMessage(msg *models.ChatMessage) (*models.ChatMessage, error) {
	var created models.ChatMessage
	err := d.db.QueryRow(`
		INSERT INTO chat_messages (conversation_id, role, content, image_url, additional_image_urls)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, conversation_id, role, content, image_url, additional_image_urls, created_at
	`, msg.ConversationID, msg.Role, msg.Content, msg.ImageURL, pq.Array(msg.AdditionalImageURLs)).Scan(
		&created.ID, &created.ConversationID, &created.Role, &created.Content,
		&created.ImageURL, &created.AdditionalImageURLs, &created.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	return &created, nil
}

func (d *DatabaseClient) ListMessages(conversationID uuid.UUID) ([]models.ChatMessage, error) {
	rows, err := d.db.Query(`
		SELECT id, conversation_id, role, content, image_url, additional_image_urls, created_at
		FROM chat_messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		var msg models.ChatMessage
		err := rows.Scan(
			&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content,
			&msg.ImageURL, &msg.AdditionalImageURLs, &msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

// RecentImageURLs returns image URLs from the newest messages carrying one,
// newest first.
func (d *DatabaseClient) RecentImageURLs(conversationID uuid.UUID, limit int) ([]string, error) {
	rows, err := d.db.Query(`
		SELECT image_url
		FROM chat_messages
		WHERE conversation_id = $1 AND image_url IS NOT NULL
		ORDER BY created_at DESC
		LIMIT $2
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent images: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("failed to scan image url: %w", err)
		}
		urls = append(urls, url)
	}

	return urls, nil
}

// --- Image tasks ---

func (d *DatabaseClient) CreateImageTask(task *models.ImageTask) (*models.ImageTask, error) {
	var created models.ImageTask
	err := d.db.QueryRow(`
		INSERT INTO image_tasks (user_id, conversation_id, original_image_url, prompt, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, conversation_id, original_image_url, prompt, status,
			processed_image_url, error_message, prediction_id, created_at, updated_at
	`, task.UserID, task.ConversationID, task.OriginalImageURL, task.Prompt, models.TaskStatusProcessing).Scan(
		&created.ID, &created.UserID, &created.ConversationID, &created.OriginalImageURL,
		&created.Prompt, &created.Status, &created.ProcessedImageURL, &created.ErrorMessage,
		&created.PredictionID, &created.CreatedAt, &created.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create image task: %w", err)
	}

	return &created, nil
}

func (d *DatabaseClient) GetImageTask(taskID, userID uuid.UUID) (*models.ImageTask, error) {
	var task models.ImageTask
	err := d.db.QueryRow(`
		SELECT id, user_id, conversation_id, original_image_url, prompt, status,
			processed_image_url, error_message, prediction_id, created_at, updated_at
		FROM image_tasks
		WHERE id = $1 AND user_id = $2
	`, taskID, userID).Scan(
		&task.ID, &task.UserID, &task.ConversationID, &task.OriginalImageURL,
		&task.Prompt, &task.Status, &task.ProcessedImageURL, &task.ErrorMessage,
		&task.PredictionID, &task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get image task: %w", err)
	}

	return &task, nil
}

func (d *DatabaseClient) CompleteImageTask(taskID uuid.UUID, processedImageURL, predictionID string) error {
	_, err := d.db.Exec(`
		UPDATE image_tasks
		SET status = 'completed', processed_image_url = $1, prediction_id = $2, updated_at = NOW()
		WHERE id = $3 AND status = 'processing'
	`, processedImageURL, predictionID, taskID)
	return err
}

func (d *DatabaseClient) FailImageTask(taskID uuid.UUID, errorMsg, predictionID string) error {
	_, err := d.db.Exec(`
		UPDATE image_tasks
		SET status = 'failed', error_message = $1,
			prediction_id = NULLIF($2, ''), updated_at = NOW()
		WHERE id = $3 AND status = 'processing'
	`, errorMsg, predictionID, taskID)
	return err
}

// --- Favorites ---

// CreateFavorite inserts a favorite row. A duplicate (user_id, image_url)
// pair is not an error: the existing row is returned with created=false.
func (d *DatabaseClient) CreateFavorite(fav *models.FavoriteImage) (*models.FavoriteImage, bool, error) {
	var created models.FavoriteImage
	err := d.db.QueryRow(`
		INSERT INTO favorite_images (user_id, conversation_id, message_id, image_url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, image_url) DO NOTHING
		RETURNING id, user_id, conversation_id, message_id, image_url, created_at
	`, fav.UserID, fav.ConversationID, fav.MessageID, fav.ImageURL).Scan(
		&created.ID, &created.UserID, &created.ConversationID, &created.MessageID,
		&created.ImageURL, &created.CreatedAt,
	)
	if err == nil {
		return &created, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to create favorite: %w", err)
	}

	// Conflict path: the pair already exists.
	var existing models.FavoriteImage
	err = d.db.QueryRow(`
		SELECT id, user_id, conversation_id, message_id, image_url, created_at
		FROM favorite_images
		WHERE user_id = $1 AND image_url = $2
	`, fav.UserID, fav.ImageURL).Scan(
		&existing.ID, &existing.UserID, &existing.ConversationID, &existing.MessageID,
		&existing.ImageURL, &existing.CreatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load existing favorite: %w", err)
	}

	return &existing, false, nil
}

// DeleteFavoriteByURL removes a favorite by exact image URL. Deleting a URL
// that was never favorited is a no-op.
func (d *DatabaseClient) DeleteFavoriteByURL(userID uuid.UUID, imageURL string) error {
	_, err := d.db.Exec(`
		DELETE FROM favorite_images
		WHERE user_id = $1 AND image_url = $2
	`, userID, imageURL)
	return err
}

func (d *DatabaseClient) ListFavorites(userID uuid.UUID, conversationID uuid.NullUUID) ([]models.FavoriteImage, error) {
	query := `
		SELECT id, user_id, conversation_id, message_id, image_url, created_at
		FROM favorite_images
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	args := []interface{}{userID}
	if conversationID.Valid {
		query = `
			SELECT id, user_id, conversation_id, message_id, image_url, created_at
			FROM favorite_images
			WHERE user_id = $1 AND conversation_id = $2
			ORDER BY created_at DESC
		`
		args = append(args, conversationID.UUID)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	defer rows.Close()

	var favorites []models.FavoriteImage
	for rows.Next() {
		var fav models.FavoriteImage
		err := rows.Scan(
			&fav.ID, &fav.UserID, &fav.ConversationID, &fav.MessageID,
			&fav.ImageURL, &fav.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		favorites = append(favorites, fav)
	}

	return favorites, nil
}

// --- Credits ---

// EnsureCreditAccount creates the user's credit row with the signup grant on
// first sight. Safe to call on every balance read.
func (d *DatabaseClient) EnsureCreditAccount(userID uuid.UUID, signupGrant int) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var accountID uuid.UUID
	err = tx.QueryRow(`
		INSERT INTO user_credits (user_id, current_balance, total_earned)
		VALUES ($1, $2, $2)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING id
	`, userID, signupGrant).Scan(&accountID)
	if errors.Is(err, sql.ErrNoRows) {
		// Account already exists, nothing to grant.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create credit account: %w", err)
	}

	if signupGrant > 0 {
		_, err = tx.Exec(`
			INSERT INTO credit_transactions (user_id, amount, transaction_type, description)
			VALUES ($1, $2, $3, 'welcome credits')
		`, userID, signupGrant, models.TransactionSignupGrant)
		if err != nil {
			return fmt.Errorf("failed to record signup grant: %w", err)
		}
	}

	return tx.Commit()
}

func (d *DatabaseClient) GetCreditBalance(userID uuid.UUID) (*models.UserCredit, error) {
	var credit models.UserCredit
	err := d.db.QueryRow(`
		SELECT id, user_id, current_balance, total_earned, total_spent, created_at, updated_at
		FROM user_credits
		WHERE user_id = $1
	`, userID).Scan(
		&credit.ID, &credit.UserID, &credit.CurrentBalance,
		&credit.TotalEarned, &credit.TotalSpent, &credit.CreatedAt, &credit.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get credit balance: %w", err)
	}

	return &credit, nil
}

// AdjustCreditBalance applies a signed amount to the balance and appends the
// audit row in one transaction. The balance change is a single conditional
// UPDATE, so concurrent spends by the same user cannot double-spend: the
// statement refuses to take the balance negative and returns
// ErrInsufficientBalance instead.
func (d *DatabaseClient) AdjustCreditBalance(userID uuid.UUID, amount int, txType, description, referenceID string) (*models.UserCredit, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var credit models.UserCredit
	err = tx.QueryRow(`
		UPDATE user_credits
		SET current_balance = current_balance + $1,
			total_earned = total_earned + GREATEST($1, 0),
			total_spent = total_spent + GREATEST(-$1, 0),
			updated_at = NOW()
		WHERE user_id = $2 AND current_balance + $1 >= 0
		RETURNING id, user_id, current_balance, total_earned, total_spent, created_at, updated_at
	`, amount, userID).Scan(
		&credit.ID, &credit.UserID, &credit.CurrentBalance,
		&credit.TotalEarned, &credit.TotalSpent, &credit.CreatedAt, &credit.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInsufficientBalance
	}
	if err != nil {
		return nil, fmt.Errorf("failed to adjust credit balance: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO credit_transactions (user_id, amount, transaction_type, description, reference_id)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''))
	`, userID, amount, txType, description, referenceID)
	if err != nil {
		return nil, fmt.Errorf("failed to record credit transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit credit adjustment: %w", err)
	}

	return &credit, nil
}

func (d *DatabaseClient) ListCreditTransactions(userID uuid.UUID) ([]models.CreditTransaction, error) {
	rows, err := d.db.Query(`
		SELECT id, user_id, amount, transaction_type, description, reference_id, created_at
		FROM credit_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credit transactions: %w", err)
	}
	defer rows.Close()

	var transactions []models.CreditTransaction
	for rows.Next() {
		var txn models.CreditTransaction
		err := rows.Scan(
			&txn.ID, &txn.UserID, &txn.Amount, &txn.TransactionType,
			&txn.Description, &txn.ReferenceID, &txn.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credit transaction: %w", err)
		}
		transactions = append(transactions, txn)
	}

	return transactions, nil
}

// --- Profiles ---

func (d *DatabaseClient) GetProfile(userID uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	err := d.db.QueryRow(`
		SELECT id, user_id, username, avatar_url, created_at, updated_at
		FROM profiles
		WHERE user_id = $1
	`, userID).Scan(
		&profile.ID, &profile.UserID, &profile.Username, &profile.AvatarURL,
		&profile.CreatedAt, &profile.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return &profile, nil
}

func (d *DatabaseClient) UpsertProfile(userID uuid.UUID, username, avatarURL string) (*models.Profile, error) {
	var profile models.Profile
	err := d.db.QueryRow(`
		INSERT INTO profiles (user_id, username, avatar_url)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''))
		ON CONFLICT (user_id) DO UPDATE
		SET username = COALESCE(NULLIF($2, ''), profiles.username),
			avatar_url = COALESCE(NULLIF($3, ''), profiles.avatar_url),
			updated_at = NOW()
		RETURNING id, user_id, username, avatar_url, created_at, updated_at
	`, userID, username, avatarURL).Scan(
		&profile.ID, &profile.UserID, &profile.Username, &profile.AvatarURL,
		&profile.CreatedAt, &profile.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}

	return &profile, nil
}
