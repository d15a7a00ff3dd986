package memory

import (
	"context"
	"sync"
)

// AsyncClient provides asynchronous TeachMem operations.
//
// It wraps the synchronous Client and executes operations in separate
// goroutines, returning channels that receive the results when the
// operations complete. The client tracks all goroutines and provides
// Wait() to ensure all operations finish.
//
// Example:
//
//	asyncClient, _ := memory.NewAsyncClient(config)
//	defer asyncClient.Close()
//
//	resultChan := asyncClient.RememberAsync(ctx, "teacher_001",
//	    "I teach 3rd grade math")
//	result := <-resultChan
//	if result.Error != nil {
//	    log.Fatal(result.Error)
//	}
type AsyncClient struct {
	*Client
	wg sync.WaitGroup
}

// NewAsyncClient creates a new asynchronous TeachMem client.
//
// Parameters:
//   - cfg: Client configuration
//
// Returns:
//   - *AsyncClient: The asynchronous client instance
//   - error: Error if configuration is invalid or initialization fails
func NewAsyncClient(cfg *Config) (*AsyncClient, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	return &AsyncClient{
		Client: client,
	}, nil
}

// SaveResult contains the result of an asynchronous save operation.
type SaveResult struct {
	// ID is the record ID (zero if an error occurred).
	ID int64

	// Error is the error returned by the operation (nil on success).
	Error error
}

// RememberResult contains the result of an asynchronous Remember operation.
type RememberResult struct {
	// IDs are the saved record IDs in extraction order.
	IDs []int64

	// Error is the error returned by the operation (nil on success).
	Error error
}

// QueryResult contains the result of an asynchronous GetMany operation.
type QueryResult struct {
	// Records is the list of matching records.
	Records []*Record

	// Error is the error returned by the operation (nil on success).
	Error error
}

// SaveAsync saves a fact asynchronously.
//
// The operation executes in a separate goroutine and returns its result
// via a channel.
func (ac *AsyncClient) SaveAsync(ctx context.Context, ownerID, key string, value Value, memoryType Type, opts ...SaveOption) <-chan *SaveResult {
	resultChan := make(chan *SaveResult, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		id, err := ac.Save(ctx, ownerID, key, value, memoryType, opts...)
		resultChan <- &SaveResult{
			ID:    id,
			Error: err,
		}
		close(resultChan)
	}()

	return resultChan
}

// RememberAsync extracts and saves facts from a message asynchronously.
//
// The operation executes in a separate goroutine and returns its result
// via a channel.
func (ac *AsyncClient) RememberAsync(ctx context.Context, ownerID, text string, opts ...SaveOption) <-chan *RememberResult {
	resultChan := make(chan *RememberResult, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		ids, err := ac.Remember(ctx, ownerID, text, opts...)
		resultChan <- &RememberResult{
			IDs:   ids,
			Error: err,
		}
		close(resultChan)
	}()

	return resultChan
}

// GetManyAsync retrieves an owner's records asynchronously.
//
// The operation executes in a separate goroutine and returns its result
// via a channel.
func (ac *AsyncClient) GetManyAsync(ctx context.Context, ownerID string, opts ...QueryOption) <-chan *QueryResult {
	resultChan := make(chan *QueryResult, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		records, err := ac.GetMany(ctx, ownerID, opts...)
		resultChan <- &QueryResult{
			Records: records,
			Error:   err,
		}
		close(resultChan)
	}()

	return resultChan
}

// SoftDeleteAsync soft-deletes a record asynchronously.
//
// Returns a channel that receives the error (nil if deletion succeeds).
func (ac *AsyncClient) SoftDeleteAsync(ctx context.Context, id int64) <-chan error {
	errChan := make(chan error, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		errChan <- ac.SoftDelete(ctx, id)
		close(errChan)
	}()

	return errChan
}

// Wait waits for all asynchronous operations to complete.
//
// It blocks until every goroutine started by an async method has
// finished. It should be called before program exit.
func (ac *AsyncClient) Wait() {
	ac.wg.Wait()
}

// Close closes the asynchronous client.
//
// It first waits for all asynchronous operations to complete, then
// closes the underlying client.
func (ac *AsyncClient) Close() error {
	ac.Wait()
	return ac.Client.Close()
}
