package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tmthyln/iris/app/database"
	"github.com/tmthyln/iris/app/feed"
	"github.com/tmthyln/iris/app/queue"
	"github.com/tmthyln/iris/app/tasks"
)

const defaultPageSize = 50

func NewHandler(feeds database.FeedRepository, sources database.SourceRepository,
	files database.FileRepository, items database.ItemRepository,
	search database.SearchRepository, q *queue.Queue,
	ingestor *tasks.Ingestor, publisher *tasks.Publisher) *Handler {
	return &Handler{
		feeds:     feeds,
		sources:   sources,
		files:     files,
		items:     items,
		search:    search,
		queue:     q,
		ingestor:  ingestor,
		publisher: publisher,
	}
}

func (h *Handler) CreateFeed(c *gin.Context) {
	var req struct {
		URL string `json:"url" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A url field is required"})
		return
	}

	fd, created, err := h.ingestor.AddFeed(c.Request.Context(), req.URL)
	if err != nil {
		slog.Warn("Feed ingestion failed", "url", req.URL, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": ingestErrorMessage(err)})
		return
	}

	status := http.StatusCreated
	if !created {
		// Known source: refresh tasks were scheduled instead.
		status = http.StatusAccepted
	}

	if fd == nil {
		c.Status(status)
		return
	}
	c.JSON(status, newFeedResponse(*fd))
}

func ingestErrorMessage(err error) string {
	var fetchErr *feed.FetchError
	if errors.As(err, &fetchErr) {
		switch fetchErr.Reason {
		case feed.ReasonBotProtected:
			return "The site is protected against automated access"
		case feed.ReasonNoFeedLink:
			return "No RSS feed found at the provided URL"
		}
	}
	return "Provided URL was not accessible"
}

func (h *Handler) ListFeeds(c *gin.Context) {
	feeds, err := h.feeds.GetActiveFeeds()
	if err != nil {
		slog.Error("Database error", "operation", "list_feeds", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	responses := make([]feedResponse, 0, len(feeds))
	for _, summary := range feeds {
		responses = append(responses, newFeedSummaryResponse(summary))
	}

	c.JSON(http.StatusOK, gin.H{"feeds": responses, "total": len(responses)})
}

func (h *Handler) GetFeed(c *gin.Context) {
	fd, ok := h.lookupFeed(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newFeedResponse(*fd))
}

func (h *Handler) UpdateFeed(c *gin.Context) {
	fd, ok := h.lookupFeed(c)
	if !ok {
		return
	}

	var req struct {
		Categories *[]string `json:"categories"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if req.Categories == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only categories can be updated"})
		return
	}

	// Categories are stored comma-separated, so a comma inside one would
	// corrupt the list.
	for _, category := range *req.Categories {
		if strings.Contains(category, ",") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Categories must not contain commas"})
			return
		}
	}

	if err := h.feeds.UpdateCategories(fd.GUID, *req.Categories); err != nil {
		slog.Error("Database error", "operation", "update_categories", "feed", fd.GUID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	fd.Categories = *req.Categories
	c.JSON(http.StatusOK, newFeedResponse(*fd))
}

func (h *Handler) RefreshFeed(c *gin.Context) {
	fd, ok := h.lookupFeed(c)
	if !ok {
		return
	}

	if err := h.publisher.Publish(tasks.TopicRefreshFeed, tasks.RefreshFeedTask{FeedGUID: fd.GUID}); err != nil {
		slog.Error("Failed to publish refresh task", "feed", fd.GUID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to schedule refresh"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"feed": fd.GUID, "status": "refresh scheduled"})
}

func (h *Handler) ListFeedItems(c *gin.Context) {
	fd, ok := h.lookupFeed(c)
	if !ok {
		return
	}

	includeFinished := c.Query("include_finished") == "true"
	ascending := c.Query("sort") == "asc"
	limit, offset := pagination(c)

	items, err := h.items.GetItemsForFeed(fd.GUID, includeFinished, ascending, limit, offset)
	if err != nil {
		slog.Error("Database error", "operation", "list_feed_items", "feed", fd.GUID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": newItemResponses(items), "total": len(items)})
}

func (h *Handler) ListItems(c *gin.Context) {
	limit, offset := pagination(c)

	var items []database.FeedItem
	var err error
	if c.Query("bookmarked") == "true" {
		items, err = h.items.GetBookmarkedItems(limit, offset)
	} else {
		items, err = h.items.GetUnfinishedItems(limit, offset)
	}
	if err != nil {
		slog.Error("Database error", "operation", "list_items", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": newItemResponses(items), "total": len(items)})
}

func (h *Handler) GetItem(c *gin.Context) {
	item, ok := h.lookupItem(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newItemResponse(*item, true))
}

func (h *Handler) UpdateItem(c *gin.Context) {
	item, ok := h.lookupItem(c)
	if !ok {
		return
	}

	var req struct {
		Finished   *bool    `json:"finished"`
		Progress   *float64 `json:"progress"`
		Bookmarked *bool    `json:"bookmarked"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.items.UpdateItemState(item.GUID, req.Finished, req.Progress, req.Bookmarked); err != nil {
		slog.Error("Database error", "operation", "update_item", "item", item.GUID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	updated, err := h.items.GetItem(item.GUID)
	if err != nil || updated == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	c.JSON(http.StatusOK, newItemResponse(*updated, false))
}

func (h *Handler) GetQueue(c *gin.Context) {
	guids, err := h.queue.Items()
	if err != nil {
		slog.Error("Queue error", "operation", "list", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Queue error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": queueResponse(guids), "total": len(guids)})
}

func (h *Handler) AddToQueue(c *gin.Context) {
	var req struct {
		GUID     string `json:"guid" binding:"required"`
		Position *int   `json:"position"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A guid field is required"})
		return
	}

	item, err := h.items.GetItem(req.GUID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if item == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
		return
	}

	// Only playable content belongs in the playback queue.
	fd, err := h.feeds.GetFeed(item.SourceFeed)
	if err != nil || fd == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if fd.Type != database.FeedTypePodcast {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only podcast items can be queued"})
		return
	}

	var guids []string
	if req.Position != nil {
		guids, err = h.queue.Insert(req.GUID, *req.Position)
	} else {
		guids, err = h.queue.Enqueue(req.GUID)
	}
	if err != nil {
		slog.Error("Queue error", "operation", "add", "item", req.GUID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Queue error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": queueResponse(guids), "total": len(guids)})
}

func (h *Handler) MoveQueueItem(c *gin.Context) {
	guid := c.Param("guid")

	var req struct {
		Position *int `json:"position" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A position field is required"})
		return
	}

	guids, err := h.queue.Insert(guid, *req.Position)
	if err != nil {
		slog.Error("Queue error", "operation", "move", "item", guid, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Queue error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": queueResponse(guids), "total": len(guids)})
}

func (h *Handler) RemoveQueueItem(c *gin.Context) {
	guid := c.Param("guid")
	compact := c.DefaultQuery("compact", "true") != "false"

	guids, err := h.queue.Remove(guid, compact)
	if err != nil {
		slog.Error("Queue error", "operation", "remove", "item", guid, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Queue error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": queueResponse(guids), "total": len(guids)})
}

func (h *Handler) ClearQueue(c *gin.Context) {
	keepFirst := c.Query("keepFirst") == "true"

	guids, err := h.queue.Clear(keepFirst)
	if err != nil {
		slog.Error("Queue error", "operation", "clear", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Queue error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": queueResponse(guids), "total": len(guids)})
}

func (h *Handler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A q parameter is required"})
		return
	}

	entries, err := h.search.Search(query, defaultPageSize)
	if err != nil {
		slog.Error("Search error", "query", query, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Search error"})
		return
	}

	type hit struct {
		GUID        string `json:"guid"`
		Kind        string `json:"kind"`
		Title       string `json:"title"`
		Description string `json:"description"`
	}

	hits := make([]hit, 0, len(entries))
	for _, entry := range entries {
		hits = append(hits, hit{
			GUID:        entry.GUID,
			Kind:        entry.TableName,
			Title:       entry.Title,
			Description: entry.Description,
		})
	}

	c.JSON(http.StatusOK, gin.H{"results": hits, "total": len(hits)})
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if total, active, err := h.feeds.GetFeedCounts(); err == nil {
		health["feeds"] = total
		health["active_feeds"] = active
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{}

	if total, active, err := h.feeds.GetFeedCounts(); err == nil {
		stats["feeds"] = total
		stats["active_feeds"] = active
	}
	if count, err := h.items.GetItemCount(); err == nil {
		stats["items"] = count
	}
	if count, err := h.files.GetFileCount(); err == nil {
		stats["files"] = count
	}
	if length, err := h.queue.Length(); err == nil {
		stats["queue_length"] = length
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) lookupFeed(c *gin.Context) (*database.Feed, bool) {
	guid := c.Param("guid")

	fd, err := h.feeds.GetFeed(guid)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed", guid, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return nil, false
	}
	if fd == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return nil, false
	}
	return fd, true
}

func (h *Handler) lookupItem(c *gin.Context) (*database.FeedItem, bool) {
	guid := c.Param("guid")

	item, err := h.items.GetItem(guid)
	if err != nil {
		slog.Error("Database error", "operation", "get_item", "item", guid, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return nil, false
	}
	if item == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
		return nil, false
	}
	return item, true
}

func pagination(c *gin.Context) (limit int, offset int) {
	limit = defaultPageSize
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

func queueResponse(guids []string) []string {
	if guids == nil {
		return []string{}
	}
	return guids
}
