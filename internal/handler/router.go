package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/edulib/edulib-api/internal/middleware"
	"github.com/edulib/edulib-api/internal/service"
)

// Handlers bundles the HTTP handlers registered on the router.
type Handlers struct {
	Auth       *AuthHandler
	User       *UserHandler
	Tag        *TagHandler
	Resource   *ResourceHandler
	Engagement *EngagementHandler
}

// RegisterRoutes mounts the API surface under the given prefix. Read routes
// take OptionalJWT so anonymous callers browse the public catalog while
// authenticated ones also see their own entries.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers, authSvc *service.AuthService) {
	api := r.Group(prefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), h.Auth.Logout)
	}

	users := api.Group("/users")
	{
		users.GET("/me", middleware.JWT(authSvc), h.User.Me)
		users.GET("/pending", middleware.JWT(authSvc), middleware.RequireStaff(), h.User.ListPendingTeachers)
		users.GET("/:id", h.User.GetProfile)
		users.POST("/:id/approve", middleware.JWT(authSvc), middleware.RequireStaff(), h.User.Approve)
		users.POST("/:id/reject", middleware.JWT(authSvc), middleware.RequireStaff(), h.User.Reject)
		users.POST("/:id/block", middleware.JWT(authSvc), middleware.RequireStaff(), h.User.Block)
		users.POST("/:id/unblock", middleware.JWT(authSvc), middleware.RequireStaff(), h.User.Unblock)
		users.POST("/:id/staff", middleware.JWT(authSvc), middleware.RequireStaff(), h.User.ToggleStaff)
	}

	tags := api.Group("/tags")
	{
		tags.GET("", h.Tag.List)
		tags.GET("/top", h.Tag.Top)
		tags.POST("", middleware.JWT(authSvc), middleware.RequireStaff(), h.Tag.Create)
	}

	resources := api.Group("/resources")
	{
		resources.GET("", middleware.OptionalJWT(authSvc), h.Resource.List)
		resources.POST("", middleware.JWT(authSvc), h.Resource.Create)
		resources.GET("/mine", middleware.JWT(authSvc), h.Resource.Mine)
		resources.GET("/saved", middleware.JWT(authSvc), h.Resource.Saved)
		resources.GET("/pending", middleware.JWT(authSvc), middleware.RequireStaff(), h.Resource.Pending)
		resources.GET("/:id", middleware.OptionalJWT(authSvc), h.Resource.Get)
		resources.DELETE("/:id", middleware.JWT(authSvc), h.Resource.Delete)

		resources.POST("/:id/approve", middleware.JWT(authSvc), middleware.RequireStaff(), h.Resource.Approve)
		resources.POST("/:id/reject", middleware.JWT(authSvc), middleware.RequireStaff(), h.Resource.Reject)
		resources.POST("/:id/hide", middleware.JWT(authSvc), middleware.RequireStaff(), h.Resource.Hide)
		resources.POST("/:id/unhide", middleware.JWT(authSvc), middleware.RequireStaff(), h.Resource.Unhide)
		resources.POST("/:id/problematic", middleware.JWT(authSvc), middleware.RequireStaff(), h.Resource.MarkProblematic)
		resources.POST("/:id/unproblematic", middleware.JWT(authSvc), middleware.RequireStaff(), h.Resource.UnmarkProblematic)

		resources.POST("/:id/view", middleware.OptionalJWT(authSvc), h.Resource.View)
		resources.POST("/:id/download", middleware.OptionalJWT(authSvc), h.Resource.Download)

		resources.POST("/:id/rate", middleware.JWT(authSvc), h.Engagement.Rate)
		resources.POST("/:id/save", middleware.JWT(authSvc), h.Engagement.ToggleSave)
		resources.GET("/:id/comments", middleware.OptionalJWT(authSvc), h.Engagement.ListComments)
		resources.POST("/:id/comments", middleware.JWT(authSvc), h.Engagement.Comment)
	}

	api.DELETE("/comments/:id", middleware.JWT(authSvc), h.Engagement.DeleteComment)
	api.GET("/files/:token", h.Resource.FetchFile)
}
