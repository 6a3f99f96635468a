package routes

import (
	"net/http"

	"blogapi/controllers"
	"blogapi/handlers"
	"blogapi/middleware"
	"blogapi/utils"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	r *gin.Engine,
	tokens *utils.TokenIssuer,
	admins middleware.AdminChecker,
	authController *controllers.AuthController,
	userController *controllers.UserController,
	postController *controllers.PostController,
	w *handlers.WebSocketHandler,
) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authRequired := middleware.AuthRequired(tokens)

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/signup", authController.Signup)
			auth.POST("/login", authController.Login)
			auth.POST("/logout", authController.Logout)
			auth.GET("/profile", authRequired, userController.GetProfile)
			auth.PUT("/about", authRequired, userController.UpdateAbout)
			auth.GET("/:userId", authRequired, userController.GetUserProfile)
		}

		post := api.Group("/post")
		{
			post.GET("/allPost", postController.ListPosts)
			post.GET("/search", postController.SearchPosts)
			post.GET("/popular", postController.PopularPosts)
			post.GET("/tags", postController.AllTags)
			post.GET("/tag/:tag", postController.PostsByTag)
			post.GET("/slug/:slug", postController.GetPostBySlug)
			post.POST("/view/:id", postController.IncrementViews)
		}

		member := post.Group("")
		member.Use(authRequired)
		{
			member.GET("/post/:id", postController.GetPost)
			member.GET("/user", postController.MyPosts)
			member.GET("/user/:userId", postController.UserPosts)
			member.POST("/create-post", postController.CreatePost)
			member.PUT("/update-post/:id", postController.UpdatePost)
			member.DELETE("/delete-post/:id", postController.DeletePost)
			member.POST("/like/:id", postController.ToggleLike)
			member.POST("/comment/:id", postController.AddComment)
			member.DELETE("/comment/:id/:commentId", postController.DeleteComment)
			member.PATCH("/featured/:id", middleware.AdminRequired(admins), postController.ToggleFeatured)
		}

		api.GET("/ws", authRequired, w.HandleWebSocket)
	}
}
