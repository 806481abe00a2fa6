package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/satsub/satsub/internal/core/application"
	"github.com/satsub/satsub/internal/core/domain"
	"github.com/satsub/satsub/internal/core/ports"
	"github.com/satsub/satsub/internal/interface/web/types"
	"github.com/satsub/satsub/utils"
)

func (s *service) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": s.buildInfo.Version,
		"commit":  s.buildInfo.Commit,
	})
}

func (s *service) randomMessageApi(c *gin.Context) {
	message, err := s.svc.RandomMessage()
	if err != nil {
		abortWithError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": message})
}

func (s *service) lookupInvoiceApi(c *gin.Context) {
	network, err := networkFromQuery(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	invoice := c.Param("invoice")

	details, err := s.svc.LookupInvoice(c.Request.Context(), invoice, network)
	if err != nil {
		abortWithError(c, err, nil)
		return
	}
	// Invoices that can't be decoded locally are still reported as the swap
	// server sees them.
	decoded, _ := utils.DecodeInvoice(invoice)
	c.JSON(http.StatusOK, types.FromInvoiceDetails(details, decoded))
}

func (s *service) checkRefundAddressApi(c *gin.Context) {
	network, err := networkFromQuery(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	address := c.Param("address")

	if err := s.svc.CheckRefundAddress(c.Request.Context(), address, network); err != nil {
		status := http.StatusBadRequest
		if ports.IsTransient(err) {
			status = http.StatusBadGateway
		}
		// nolint:all
		c.Error(err)
		c.AbortWithStatusJSON(status, gin.H{
			"address": address,
			"valid":   false,
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": address, "valid": true})
}

func (s *service) listOrdersApi(c *gin.Context) {
	orders, err := s.svc.ListOrders(c.Request.Context())
	if err != nil {
		abortWithError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, types.FromOrders(orders))
}

func (s *service) createOrderApi(c *gin.Context) {
	var req types.CreateOrder
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if len(req.Message) > 0 && len(req.Invoice) > 0 {
		badRequest(c, fmt.Errorf("message and invoice are mutually exclusive"))
		return
	}
	if req.MaxBidRate > 0 && req.BidRate > req.MaxBidRate {
		badRequest(c, fmt.Errorf(
			"bid rate %d must not exceed max bid rate %d", req.BidRate, req.MaxBidRate,
		))
		return
	}
	var network domain.Network
	if len(req.Network) > 0 {
		n, err := domain.ParseNetwork(req.Network)
		if err != nil {
			badRequest(c, err)
			return
		}
		network = n
	}

	order, err := s.svc.CreateOrder(c.Request.Context(), application.CreateOrderRequest{
		Message:    []byte(req.Message),
		Network:    network,
		BidMsat:    req.BidMsat,
		BidRate:    req.BidRate,
		MaxBidRate: req.MaxBidRate,
		Invoice:    req.Invoice,
	})
	if err != nil {
		abortWithError(c, err, order)
		return
	}
	c.JSON(http.StatusCreated, types.FromOrder(*order))
}

func (s *service) getOrderApi(c *gin.Context) {
	order, err := s.svc.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, types.FromOrder(*order))
}

func (s *service) bumpOrderApi(c *gin.Context) {
	var req types.BumpOrder
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	order, err := s.svc.BumpOrder(c.Request.Context(), c.Param("id"), req.BidIncrease)
	if err != nil {
		abortWithError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, types.FromOrder(*order))
}

func (s *service) refundAddressApi(c *gin.Context) {
	var req types.RefundAddress
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	var addrType ports.AddressType
	if len(req.AddressType) > 0 {
		t, err := ports.ParseAddressType(req.AddressType)
		if err != nil {
			badRequest(c, err)
			return
		}
		addrType = t
	}

	order, err := s.svc.GetRefundAddress(c.Request.Context(), c.Param("id"), addrType)
	if err != nil {
		abortWithError(c, err, order)
		return
	}
	c.JSON(http.StatusOK, types.FromOrder(*order))
}

func (s *service) quoteSwapApi(c *gin.Context) {
	order, quote, err := s.svc.QuoteSwap(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err, order)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order": types.FromOrder(*order),
		"quote": types.FromQuote(quote),
	})
}

func (s *service) paySwapApi(c *gin.Context) {
	order, err := s.svc.PaySwap(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err, order)
		return
	}
	c.JSON(http.StatusOK, types.FromOrder(*order))
}

func (s *service) checkSwapApi(c *gin.Context) {
	order, status, err := s.svc.CheckSwap(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order":  types.FromOrder(*order),
		"status": types.FromSwapStatus(status),
	})
}

func (s *service) executeOrderApi(c *gin.Context) {
	id := c.Param("id")
	if err := s.svc.ExecuteOrder(c.Request.Context(), id); err != nil {
		abortWithError(c, err, nil)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": id, "status": "executing"})
}

func (s *service) cancelOrderApi(c *gin.Context) {
	id := c.Param("id")
	if err := s.svc.CancelOrder(c.Request.Context(), id); err != nil {
		abortWithError(c, err, nil)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": id, "status": "cancelling"})
}

func networkFromQuery(c *gin.Context) (domain.Network, error) {
	network := c.Query("network")
	if len(network) == 0 {
		return "", nil
	}
	return domain.ParseNetwork(network)
}

func badRequest(c *gin.Context, err error) {
	// nolint:all
	c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// abortWithError responds with the status matching err. If the operation
// failed the order, the failed order is returned along with the error.
func abortWithError(c *gin.Context, err error, order *domain.Order) {
	// nolint:all
	c.Error(err)

	body := gin.H{"error": err.Error()}
	if order != nil && order.Status == domain.OrderFailed {
		body["order"] = types.FromOrder(*order)
	}
	c.AbortWithStatusJSON(errorStatus(err), body)
}

func errorStatus(err error) int {
	var gwErr *ports.GatewayError
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound
	case domain.FailureReasonOf(err) != domain.UnexpectedFailure:
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.As(err, &gwErr):
		if gwErr.IsTransient() {
			return http.StatusBadGateway
		}
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
