package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"logistria/internal/domain"
	"logistria/internal/service"
)

func (s *server) session(c *gin.Context) {
	profile := profileFrom(c)
	c.JSON(http.StatusOK, gin.H{
		"uid":   profile.UID,
		"email": profile.Email,
		"role":  profile.Role,
		"home":  domain.HomeFor(profile.Role),
	})
}

func (s *server) catalog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"products": s.Orders.Catalog()})
}

func (s *server) placeOrder(c *gin.Context) {
	var input service.PlaceOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	order, err := s.Orders.Place(c.Request.Context(), principalFrom(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// listOrders returns every order to operators and a client's own orders
// to everyone else.
func (s *server) listOrders(c *gin.Context) {
	uid := ""
	if profile := profileFrom(c); !domain.IsOperator(profile.Role) {
		uid = profile.UID
	}
	orders, err := s.Orders.List(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (s *server) dashboard(c *gin.Context) {
	d, err := s.Feeds.Dashboard(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}
