package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/oceanobs/objstore/internal/carbundle"
	"github.com/oceanobs/objstore/internal/metrics"
	"github.com/oceanobs/objstore/internal/workbench"
)

// dispatch wraps one RPC handler with the store-call timeout (spec
// §5's per-operation context.WithTimeout) and the per-operation
// request-count/duration metrics every RPC exposes.
func (s *Server) dispatch(op string, fn func(ctx context.Context, c echo.Context) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		timer := metrics.NewTimer()
		ctx, cancel := context.WithTimeout(c.Request().Context(), s.cfg.StoreTimeout())
		defer cancel()

		err := fn(ctx, c)
		timer.ObserveVec(metrics.RPCDuration, op)
		metrics.RPCRequestsTotal.WithLabelValues(op, taxonomyCode(err)).Inc()

		if err != nil {
			return writeError(c, err)
		}
		return nil
	}
}

func (s *Server) handlePush(c echo.Context) error {
	return s.dispatch("push", func(ctx context.Context, c echo.Context) error {
		var req pushRequestWire
		if err := c.Bind(&req); err != nil {
			return workbenchBadRequest(err)
		}

		for _, rs := range req.Repositories {
			fetcher := &httpFetcher{baseURL: rs.ReplyToURL, client: &http.Client{Timeout: s.cfg.StoreTimeout()}}
			err := s.wb.OpPush(ctx, workbench.PushRequest{Repositories: []workbench.PushRepoState{{
				RepositoryKey:   rs.RepositoryKey,
				BlobKeys:        toSet(rs.BlobKeys),
				RepoHeadElement: rs.RepoHeadElement,
			}}}, fetcher)
			if err != nil {
				return err
			}
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})(c)
}

func (s *Server) handlePull(c echo.Context) error {
	return s.dispatch("pull", func(ctx context.Context, c echo.Context) error {
		var req pullRequestWire
		if err := c.Bind(&req); err != nil {
			return workbenchBadRequest(err)
		}

		reply, err := s.wb.OpPull(ctx, workbench.PullRequest{
			RepositoryKey:       req.RepositoryKey,
			CommitKeysPullerHas: toSet(req.CommitKeys),
			GetHeadContent:      req.GetHeadContent,
			ExcludedTypes:       toSet(req.ExcludedTypes),
		})
		if err != nil {
			return err
		}

		blobsCAR, err := carbundle.Encode(reply.BlobElements)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, pullReplyWire{
			RepoHeadElement: reply.RepoHeadElement,
			CommitElements:  reply.CommitElements,
			BlobsCAR:        blobsCAR,
		})
	})(c)
}

func (s *Server) handleCheckout(c echo.Context) error {
	return s.dispatch("checkout", func(ctx context.Context, c echo.Context) error {
		var req checkoutRequestWire
		if err := c.Bind(&req); err != nil {
			return workbenchBadRequest(err)
		}

		reply, err := s.wb.OpCheckout(ctx, workbench.CheckoutRequest{
			RepositoryKey:     req.RepositoryKey,
			CommitKeyOrBranch: req.CommitKeyOrBranch,
		})
		if err != nil {
			return err
		}

		blobsCAR, err := carbundle.Encode(reply.BlobElements)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, checkoutReplyWire{
			CommitElement: reply.CommitElement,
			BlobsCAR:      blobsCAR,
		})
	})(c)
}

func (s *Server) handlePutBlobs(c echo.Context) error {
	return s.dispatch("put_blobs", func(ctx context.Context, c echo.Context) error {
		var req putBlobsRequestWire
		if err := c.Bind(&req); err != nil {
			return workbenchBadRequest(err)
		}
		blobElements, err := carbundle.Decode(req.BlobsCAR)
		if err != nil {
			return workbenchBadRequest(err)
		}
		if err := s.wb.OpPutBlobs(ctx, workbench.PutBlobsRequest{BlobElements: blobElements}); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})(c)
}

func (s *Server) handleFetchBlobs(c echo.Context) error {
	return s.dispatch("fetch_blobs", func(ctx context.Context, c echo.Context) error {
		var req fetchBlobsRequestWire
		if err := c.Bind(&req); err != nil {
			return workbenchBadRequest(err)
		}
		reply, err := s.wb.OpFetchBlobs(ctx, workbench.FetchBlobsRequest{BlobKeys: req.BlobKeys})
		if err != nil {
			return err
		}
		blobsCAR, err := carbundle.Encode(reply.BlobElements)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, fetchBlobsReplyWire{BlobsCAR: blobsCAR})
	})(c)
}

// workbenchBadRequest wraps a JSON-bind failure as the bad_request
// taxonomy code (spec §9 "Unknown message type → bad_request" covers
// the same malformed-envelope case).
func workbenchBadRequest(err error) error {
	return &taggedError{taxonomy: workbench.ErrBadRequest, cause: err}
}

type taggedError struct {
	taxonomy error
	cause    error
}

func (e *taggedError) Error() string { return e.cause.Error() }
func (e *taggedError) Unwrap() error { return e.taxonomy }
